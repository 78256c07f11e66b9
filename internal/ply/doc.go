// Package ply reads and rewrites binary PLY point clouds.
//
// The package understands enough of the format to stream a file through
// unchanged except for one element whose fixed-layout records are
// re-shaped by a [Migration]. Records are copied as raw bytes, so values are
// preserved bit for bit and no byte swapping ever happens: the output keeps
// the input's format and byte order.
//
// The migration used by the pipeline inserts the 45 higher-order spherical
// harmonic coefficients (f_rest_0 .. f_rest_44) after f_dc_2, producing the
// 62-float, 248-byte Gaussian splat vertex that the renderer expects.
//
//	res, err := ply.MigrateFile("sample.ply", "output.ply", ply.DefaultMigration())
package ply
