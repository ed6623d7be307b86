package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/osevents/internal/export"
	"github.com/alfredjeanlab/osevents/internal/images"
	"github.com/alfredjeanlab/osevents/internal/store/postgres"
)

var (
	exportOutput string
	exportSince  string
	exportS3Key  string
)

var exportCmd = &cobra.Command{
	Use:     "export",
	Short:   "Write stored events as JSON lines",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.RequireDatabaseURL(); err != nil {
			return err
		}
		if exportS3Key != "" && cfg.ImageBucket == "" {
			return fmt.Errorf("--s3-key requires OSEVENTS_IMAGE_BUCKET")
		}
		var since time.Time
		if exportSince != "" {
			t, err := time.ParseInLocation(time.DateOnly, exportSince, cfg.Timezone)
			if err != nil {
				return fmt.Errorf("invalid --since %q: want YYYY-MM-DD", exportSince)
			}
			since = t
		}

		ctx := context.Background()
		st, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer st.Close()

		var buf bytes.Buffer
		n, err := export.WriteJSONL(ctx, st, &buf, since)
		if err != nil {
			return fmt.Errorf("exporting events: %w", err)
		}

		if exportS3Key != "" {
			up, err := images.NewS3Uploader(ctx, cfg.ImageBucket, cfg.ImageRegion, cfg.ImageEndpoint)
			if err != nil {
				return fmt.Errorf("creating uploader: %w", err)
			}
			if err := up.Put(ctx, exportS3Key, buf.Bytes(), "application/x-ndjson"); err != nil {
				return err
			}
			slog.Info("export uploaded", "bucket", cfg.ImageBucket, "key", exportS3Key, "events", n)
		}

		if exportOutput == "-" && exportS3Key != "" {
			return nil
		}
		return writeExport(exportOutput, &buf, n)
	},
}

func writeExport(path string, r io.Reader, n int) error {
	if path == "-" {
		_, err := io.Copy(os.Stdout, r)
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Exported %d events to %s\n", n, path)
	return nil
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "-", "file to write, or - for stdout")
	exportCmd.Flags().StringVar(&exportSince, "since", "", "only events starting after this date (YYYY-MM-DD)")
	exportCmd.Flags().StringVar(&exportS3Key, "s3-key", "", "also upload the export to the image bucket under this key")
}
