// Package layeredfs resolves logical paths against a prioritized stack of
// content sources: plain directories, UPKF archives and VPK archives.
//
// An [FS] holds an ordered list of layers. The front layer has the highest
// priority; a path present in several layers is served entirely by the
// first one that contains it. There is no merging of directories or
// fields across layers.
//
// # Quick Start
//
//	lfs := layeredfs.New()
//	if _, err := lfs.AddLayer("mods/override", true); err != nil {
//	    return err
//	}
//	if _, err := lfs.AddLayer("content/base.upkf", false); err != nil {
//	    return err
//	}
//	if _, err := lfs.AddLayer("vendor/pak01_dir.vpk", false); err != nil {
//	    return err
//	}
//
//	f, err := lfs.GetFile("scripts/main.lua")
//	if err != nil {
//	    return err
//	}
//	defer f.Close()
//	src, err := f.ReadString()
//
// # Providers
//
// AddLayer tries each registered [Provider] in order and lets the first one
// that supports the path construct the layer. The defaults recognize
// directories, ".upkf" files and ".vpk" files. Use [WithProvider] or
// [FS.RegisterProvider] to add backends.
//
// # Layer identity
//
// Every layer gets a random [ID] when it is constructed. A [File] carries
// only the ID of the layer that produced it; use [FS.FindLayer] to get the
// layer back, even after the list was reordered.
//
// # io/fs
//
// FS implements [fs.FS], [fs.ReadFileFS] and [fs.StatFS], so it can be
// handed to any consumer that only needs "give me the bytes at this path".
// Directories open as listings of the front-most layer holding them, which
// is enough for [fs.WalkDir], [fs.Glob] and [fs.Sub]. A listing is never a
// merge: files present only in lower layers are served but not listed.
package layeredfs
