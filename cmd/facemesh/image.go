package main

import (
	"fmt"
	"os"
	"runtime"

	"gioui.org/app"
	"github.com/esimov/facemesh"
	"github.com/esimov/facemesh/utils"
	"github.com/spf13/cobra"
)

func imageCmd() *cobra.Command {
	var (
		mesh     meshFlags
		source   string
		dest     string
		rendered string
		workers  int
		preview  bool
	)

	cmd := &cobra.Command{
		Use:   "image",
		Short: "Draw the face landmarks of an image, a directory of images or an image URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			proc, err := mesh.processor()
			if err != nil {
				return err
			}
			proc.Preview = preview
			proc.RenderedPath = rendered

			op := &facemesh.Ops{
				Src:      source,
				Dst:      dest,
				PipeName: pipeName,
				Workers:  workers,
			}
			if !preview {
				return proc.Execute(op)
			}

			// The Gio event loop has to own the main goroutine.
			go func() {
				if err := proc.Execute(op); err != nil {
					fmt.Fprintf(os.Stderr, "%s%s\n",
						utils.DecorateText(fmt.Sprintf("\n%v", err), utils.ErrorMessage),
						utils.DefaultColor,
					)
					os.Exit(1)
				}
				if img := proc.Annotated(); img != nil {
					gui := facemesh.NewGUI(img, "Face Mesh | Preview")
					if err := gui.Run(); err != nil {
						fmt.Fprintln(os.Stderr, utils.DecorateText(err.Error(), utils.ErrorMessage))
						os.Exit(1)
					}
				}
				os.Exit(0)
			}()
			app.Main()
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&source, "in", pipeName, "Source image, directory or URL")
	fl.StringVar(&dest, "out", pipeName, "Destination image or directory")
	fl.StringVar(&rendered, "rendered", "", "Save the image rendered by the graph to this file")
	fl.IntVar(&workers, "conc", runtime.NumCPU(), "Number of files to process concurrently")
	fl.BoolVar(&preview, "preview", false, "Show the annotated image in a window")
	mesh.register(cmd)

	return cmd
}
