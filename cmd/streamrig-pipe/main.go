// Command streamrig-pipe is a minimal demo CLI: it wires a source
// file machine through an explicit ring buffer into a sink file
// machine and reports throughput once the pipeline drains, the
// streamrig analogue of the teacher's cmd/ublk-mem demo.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/streamrig/streamrig"
	"github.com/streamrig/streamrig/internal/envconfig"
	"github.com/streamrig/streamrig/internal/logging"
	"github.com/streamrig/streamrig/machines/file"
)

func main() {
	var (
		in   = flag.String("in", "", "input file to copy from")
		out  = flag.String("out", "", "output file to copy to")
		hwm  = flag.Int("high-water", 0, "ring high-water mark in bytes (0 disables backpressure)")
		show = flag.Bool("metrics", false, "print throughput metrics once the pipeline completes")
	)
	flag.Parse()

	cfg := envconfig.Load()
	cfg.Apply()
	log := logging.Default()

	if *in == "" || *out == "" {
		fmt.Fprintln(os.Stderr, "usage: streamrig-pipe -in <path> -out <path>")
		os.Exit(2)
	}

	srcDir, srcTag, srcExt := splitPath(*in)
	dstDir, dstTag, dstExt := splitPath(*out)

	src, err := streamrig.Create(streamrig.KindFile, streamrig.FileArgs{
		Dir: srcDir, Tag: srcTag, Ext: srcExt, Flags: file.Read,
	})
	if err != nil {
		log.Errorf("create source: %v", err)
		os.Exit(1)
	}
	dst, err := streamrig.Create(streamrig.KindFile, streamrig.FileArgs{
		Dir: dstDir, Tag: dstTag, Ext: dstExt, Flags: file.Write,
	})
	if err != nil {
		log.Errorf("create sink: %v", err)
		os.Exit(1)
	}
	buf, err := streamrig.Create(streamrig.KindRing, nil)
	if err != nil {
		log.Errorf("create ring: %v", err)
		os.Exit(1)
	}
	if *hwm > 0 {
		streamrig.SetHighWater(buf, *hwm)
	}

	if *show {
		streamrig.EnableMetrics(src)
		streamrig.EnableMetrics(dst)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Infof("received shutdown signal")
		cancel()
	}()

	s := streamrig.NewStream(ctx)
	if err := streamrig.AddSegment(s, src, buf); err != nil {
		log.Errorf("wire source: %v", err)
		os.Exit(1)
	}
	if err := streamrig.AddSegment(s, buf, dst); err != nil {
		log.Errorf("wire sink: %v", err)
		os.Exit(1)
	}

	streamrig.StartStream(s)
	streamrig.JoinStream(s)

	if *show {
		fmt.Println("source:")
		fmt.Print(streamrig.FormatMetrics(src, streamrig.Full, false))
		fmt.Println("sink:")
		fmt.Print(streamrig.FormatMetrics(dst, streamrig.Full, false))
	}

	streamrig.Destroy(src)
	streamrig.Destroy(dst)
	streamrig.Destroy(buf)
}

// splitPath breaks a full path into the directory, base tag, and
// extension the file machine's Dir/Tag/Ext constructor args expect.
func splitPath(path string) (dir, tag, ext string) {
	dir = filepath.Dir(path)
	base := filepath.Base(path)
	ext = strings.TrimPrefix(filepath.Ext(base), ".")
	tag = strings.TrimSuffix(base, filepath.Ext(base))
	return dir, tag, ext
}
