// Package zipstream builds ZIP archives as a lazy stream of byte chunks.
//
// Entries are registered on an [Archive] from in-memory bytes, strings, or
// streamable sources such as files and HTTP objects. [Archive.Generate]
// produces the container in order without holding it in memory: content is
// stored uncompressed, and ZIP64 records are emitted automatically once an
// entry size, an offset or the entry count exceeds the classic limits.
//
// Checksums of streamed content are computed on a bounded pool of worker
// goroutines (see the [checksum] subpackage) before each entry is emitted,
// so every source is read twice: once for the checksum and once for output.
//
// # Quick Start
//
//	a := zipstream.New(zipstream.WithLogger(logger))
//	defer a.Close()
//
//	_ = a.AddFolder("docs")
//	_ = a.AddFile("docs/readme.txt", "hello")
//	src, err := zipstream.FileSource("/var/log/app.log")
//	if err != nil {
//	    return err
//	}
//	_ = a.AddFile("logs/app.log", src)
//
//	for chunk, err := range a.Generate(ctx) {
//	    if err != nil {
//	        return err
//	    }
//	    if _, err := w.Write(chunk); err != nil {
//	        return err
//	    }
//	}
//
// [Archive.WriteArchive] performs the same loop. The sink and registry
// subpackages deliver the stream to files and OCI registries.
//
// # Progress
//
// Pass [GenerateWithProgress] to receive a [ProgressEvent] after every
// content chunk and a final [StageFinalizing] event at 100 percent.
package zipstream
