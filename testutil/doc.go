/*
Package testutil provides testing utilities for the matchnet protocol
implementation.

This package contains test data generators shared by the package test suites:
dataset generators with a known overlap, CSV fixture writers, and deterministic
seed helpers.

# Dataset Generators

Functions for creating identifier datasets whose match count is known up
front:

	// Two datasets of 10 identifiers each, 4 of them shared
	a, b := testutil.GenerateOverlap(10, 10, 4)

	// Write one of them as a CSV fixture
	path := testutil.WriteDatasetCSV(t, "email", a)
*/
package testutil
