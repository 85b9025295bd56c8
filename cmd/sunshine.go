package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/chaos-io/removebg/util"
	"github.com/spf13/cobra"
)

func newSunshineCmd(opts *options) *cobra.Command {
	var keepBg bool
	c := &cobra.Command{
		Use:   "sunshine SRC OUTDIR",
		Short: "Render the sweeping light effect as PNG frames",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 2 {
				return &exitError{code: exitUsage, err: fmt.Errorf("expected SRC and OUTDIR, got %d args", len(args))}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService(opts.cfg)
			if err != nil {
				return pipelineError(cmd.ErrOrStderr(), err)
			}
			defer func() {
				_ = svc.Close()
			}()

			req := sourceRequest(args[0])
			if opts.rect != "" {
				if polygon, ok := ParseRect(opts.rect); ok {
					req.SelectPolygon = polygon
				}
			}

			frames, err := svc.Sunshine(cmd.Context(), req, !keepBg)
			if err != nil {
				return pipelineError(cmd.ErrOrStderr(), err)
			}

			dir := util.ResolvePath("", args[1])
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return pipelineError(cmd.ErrOrStderr(), fmt.Errorf("create %s: %w", dir, err))
			}
			for i, f := range frames {
				p := filepath.Join(dir, fmt.Sprintf("sunshine-%d.png", i))
				if err := os.WriteFile(p, f, 0o644); err != nil {
					return pipelineError(cmd.ErrOrStderr(), fmt.Errorf("write %s: %w", p, err))
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Output: %s\n", p)
			}
			return nil
		},
	}
	c.Flags().BoolVar(&keepBg, "keep-bg", false, "keep the original background")
	c.Flags().StringVar(&opts.rect, "rect", "", "optional, selected rectangle: x,y,width,height")
	return c
}
