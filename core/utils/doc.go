// Package utils provides common utility functions for the reconciler.
// It includes the type-coercion helpers used when normalizing spreadsheet
// rows, where the same ID column may arrive as a string, an int, or a float
// depending on the export path.
package utils
