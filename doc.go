// Package hpak reads and writes HPAK packed asset archives.
//
// An archive is a single file holding many asset files, each paired with a
// small metadata document (RON text). Entries are addressed by a 64-bit hash
// of their normalized path, so lookups never compare path strings and the
// archive stores no names.
//
// The file layout is a fixed 17-byte header, a region of (metadata, data)
// block pairs each starting on an alignment boundary, and the entries tables
// at the end:
//
//	+--------+---------+------+---------+------+-----+--------+
//	| header | meta #0 | data | meta #1 | data | ... | tables |
//	+--------+---------+------+---------+------+-----+--------+
//
// Metadata blocks share one archive-wide compression algorithm; each data
// block records its own.
//
// # Building
//
// Use [NewWriter] or [Create], add entries, then call [Writer.Finish]:
//
//	w, err := hpak.Create("assets.hpak", hpak.WithAlignment(4096))
//	if err != nil {
//	    return err
//	}
//	defer w.Close()
//	report, err := w.AddPathsFromDir(ctx, "./assets")
//	if err != nil {
//	    return err
//	}
//	for _, f := range report.Failed {
//	    log.Println(f)
//	}
//	return w.Finish()
//
// Output depends only on the set of (path, metadata, data, compression)
// tuples added: blocks and tables are laid out in ascending path-hash order,
// so insertion order never changes the bytes produced.
//
// # Reading
//
// [Open] maps the archive read-only. Readers are safe for concurrent use.
//
//	r, err := hpak.Open("assets.hpak")
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
//	data, err := r.ReadData("textures/grass.png")
package hpak
