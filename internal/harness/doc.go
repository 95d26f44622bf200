// Package harness runs widget repository scenarios.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: shift_on_collision
//	description: "Inserting at a taken z pushes the run upward"
//	steps:
//	  - op: create
//	    ref: a
//	    request: { x: 0, y: 0, z: 1, width: 10, height: 10 }
//	    expect: { z: 1 }
//	  - op: update
//	    ref: a
//	    request: { width: 0 }
//	    expect: { error: VALIDATION }
//	  - op: list
//	    expect: { order: [a], count: 1 }
//
// Ops are create, update, get, delete, list and page. A create step binds
// its ref to the new widget's id; later steps name widgets by ref, or by a
// literal id to address widgets that never existed.
//
// # Expectations
//
//   - z: the z of the returned widget
//   - widget: a subset of x, y, z, width, height the returned widget must match
//   - error: VALIDATION, NOT_FOUND or PAGE; the step must fail with that code
//   - order: refs in the order a list or page returns them
//   - count: number of widgets a list or page returns
//
// A step without an error expectation must succeed.
//
// # Deterministic Testing
//
// RunInMemory uses a fresh repository with a deterministic clock and an id
// counter starting at 1, so the final listing is reproducible and can be
// compared against golden files in testdata/golden.
package harness
