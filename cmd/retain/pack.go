package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vango-dev/retain/internal/errors"
	"github.com/vango-dev/retain/pkg/loader"
	"github.com/vango-dev/retain/pkg/protocol"
)

func packCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "pack <template.yaml>...",
		Short: "Compile YAML templates to the binary format",
		Long: `Compile YAML templates to .rtpl files in the binary template format.

Binary templates are smaller and parse faster; locators accept both.
Each input is written next to itself unless --output names a directory.

Examples:
  retain pack components/card.yaml
  retain pack components/*.yaml --output=dist/components`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, in := range args {
				out, err := packFile(in, output)
				if err != nil {
					return err
				}
				success(cmd.OutOrStdout(), "%s → %s", in, out)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output directory (default: next to each input)")

	return cmd
}

// packFile compiles one YAML template and returns the path written. The
// output is decoded again before it is written.
func packFile(in, outDir string) (string, error) {
	data, err := os.ReadFile(in)
	if err != nil {
		return "", err
	}
	tree, err := loader.ParseYAML(data)
	if err != nil {
		return "", errors.New("L003").WithDetailf("%s: %v", in, err).Wrap(err)
	}
	bin, err := protocol.EncodeTemplate(tree)
	if err != nil {
		return "", errors.FromError(err, "P001").WithDetailf("%s: %v", in, err)
	}
	back, err := protocol.DecodeTemplate(bin)
	if err != nil {
		return "", errors.FromError(err, "P001").WithDetailf("%s: round trip: %v", in, err)
	}
	again, err := protocol.EncodeTemplate(back)
	if err != nil || !bytes.Equal(bin, again) {
		return "", errors.New("P001").WithDetailf("%s: template does not survive a round trip", in)
	}

	dir := filepath.Dir(in)
	if outDir != "" {
		if err := os.MkdirAll(outDir, 0755); err != nil {
			return "", err
		}
		dir = outDir
	}
	base := strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))
	out := filepath.Join(dir, base+".rtpl")
	if err := os.WriteFile(out, bin, 0644); err != nil {
		return "", err
	}
	return out, nil
}
