// Package core provides the domain model of the group allocator.
//
// This package turns a raw roster into the immutable structures every later
// stage reads:
//
//   - Roster: validated students with case-folded category identifiers
//   - Category: a (dimension, value) pair with its roster-wide count
//   - Partition: the two group size classes and how many groups take each
//   - Thresholds: the minimum per-group count for every category value
//
// Example usage:
//
//	roster, err := core.NewRoster(records, 9)
//	if err != nil {
//	    return err // *core.ValidationError
//	}
//	partition, err := core.NewPartition(roster.Len(), groups)
//	if err != nil {
//	    return err
//	}
//	thresholds := core.ComputeThresholds(roster, partition.Groups)
//
// Nothing in this package mutates a Roster after NewRoster returns; accessors
// hand out copies.
package core
