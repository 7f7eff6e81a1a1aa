// Package asarpack packages an application's source tree for distribution,
// optionally sealing it into a single asar archive.
//
// A packaging run copies the application into a staging directory, runs the
// caller's hooks and pruner, and then finalizes the resources directory of
// each target in one of two shapes:
//   - Archive: app.asar, plus app.asar.unpacked/ when unpack rules select files
//   - Loose: the staged tree as app/
//
// A prebuilt archive can replace the archive stage entirely; it is copied
// byte for byte and never accompanied by an unpacked directory.
//
// # Quick Start
//
// Package the host platform with archiving enabled:
//
//	results, err := asarpack.Package(ctx, asarpack.Options{
//	    Name: "myapp",
//	    Dir:  "./app",
//	    Out:  "./dist",
//	    Asar: asarpack.RawSettings(asarpack.Settings{
//	        Unpack:    "*.node",
//	        UnpackDir: "native",
//	    }),
//	})
//
// # Archive Option
//
// The asar option arrives loosely typed from configuration files and is
// converted once with [RawOptionFromValue]. [Normalize] turns it into a
// [Config] or reports archiving disabled; malformed shapes disable
// archiving rather than failing the run.
//
// # Warnings
//
// Non-fatal warnings, such as options ignored because a prebuilt archive was
// given, are delivered one at a time to the handler set with
// [WithWarningHandler], or logged at warn level by default.
package asarpack
