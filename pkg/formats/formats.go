// Package formats reads and writes voxel grids in their binary file layout,
// optionally wrapped in a zstd frame.
package formats
