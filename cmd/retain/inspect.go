package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vango-dev/retain/internal/errors"
	"github.com/vango-dev/retain/pkg/host"
	"github.com/vango-dev/retain/pkg/loader"
	"github.com/vango-dev/retain/pkg/render"
	"github.com/vango-dev/retain/pkg/vdom"
)

func inspectCmd() *cobra.Command {
	var (
		props   []string
		html    bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "inspect <template>",
		Short: "Print the node tree of a template",
		Long: `Parse a YAML or binary template and print its node tree.

With --html the template is rendered as a component, resolving the
components it references from templates in the same directory, and the
resulting HTML is printed.

Examples:
  retain inspect components/card.yaml
  retain inspect components/card.rtpl --html --prop title=Hello --prop count=3`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, args[0], props, html, timeout)
		},
	}

	cmd.Flags().StringArrayVarP(&props, "prop", "p", nil, "Prop passed to the template as name=value")
	cmd.Flags().BoolVar(&html, "html", false, "Render the template and print HTML")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Bound on rendering with --html")

	return cmd
}

func runInspect(cmd *cobra.Command, path string, rawProps []string, html bool, timeout time.Duration) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var tree *vdom.VNode
	if strings.EqualFold(filepath.Ext(path), ".rtpl") {
		tree, err = loader.ParseTemplate(data)
	} else {
		tree, err = loader.ParseYAML(data)
	}
	if err != nil {
		return errors.New("L003").WithDetailf("%s: %v", path, err).Wrap(err)
	}

	w := cmd.OutOrStdout()
	if !html {
		printOutline(w, tree, 0)
		return nil
	}

	props, err := parseProps(rawProps)
	if err != nil {
		return err
	}
	out, err := renderHTML(path, props, timeout)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, out)
	return nil
}

// parseProps decodes name=value pairs. Values are YAML scalars, so numbers
// and booleans keep their type.
func parseProps(raw []string) (vdom.Props, error) {
	m := make(map[string]any, len(raw))
	for _, kv := range raw {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			return vdom.Props{}, errors.Newf(errors.CategoryCLI, "prop %q is not name=value", kv)
		}
		var v any
		if err := yaml.Unmarshal([]byte(value), &v); err != nil || v == nil {
			v = value
		}
		switch v.(type) {
		case string, bool, int, float64:
		default:
			v = value
		}
		m[name] = v
	}
	return vdom.PropsOf(m), nil
}

// renderHTML renders the template at path into a memory surface and
// returns the HTML of the root.
func renderHTML(path string, props vdom.Props, timeout time.Duration) (string, error) {
	l := loader.New()
	defer l.Close()
	if _, err := l.RegisterDir(filepath.Dir(path)); err != nil {
		return "", err
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	l.Register(name, loader.File(path))

	mem := host.NewMemory()
	root, err := mem.CreateElement("main", "")
	if err != nil {
		return "", err
	}
	commits := make(chan render.Commit, 1)
	d := render.New(mem,
		render.WithLoader(l),
		render.WithCommitHook(func(c render.Commit) {
			select {
			case commits <- c:
			default:
			}
		}),
	)
	defer d.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	d.Inject(ctx, root, name, props)

	select {
	case c := <-commits:
		if c.Mode == render.ModeError {
			return mem.HTML(root), errors.New("R005").WithDetailf("rendering %s failed", name)
		}
		return mem.HTML(root), nil
	case <-ctx.Done():
		return "", errors.New("R006").WithDetailf("rendering %s took longer than %s", name, timeout)
	}
}

// printOutline writes one line per node, indented by depth.
func printOutline(w io.Writer, v *vdom.VNode, depth int) {
	if v == nil {
		return
	}
	indent := strings.Repeat("  ", depth)
	switch v.Kind {
	case vdom.KindText:
		fmt.Fprintf(w, "%s%q\n", indent, v.Text)
		return
	case vdom.KindComponent:
		fmt.Fprintf(w, "%s%s%s\n", indent, paint("35", "@"+v.ComponentName()), outlineProps(v))
	default:
		fmt.Fprintf(w, "%s%s%s\n", indent, paint("36", "<"+v.Tag+">"), outlineProps(v))
	}
	for _, c := range v.Children {
		printOutline(w, c, depth+1)
	}
}

func outlineProps(v *vdom.VNode) string {
	var parts []string
	v.Props.Each(func(name string, pv vdom.PropValue) {
		if pv.Kind == vdom.PropStyle {
			parts = append(parts, fmt.Sprintf("%s={%s}", name, pv.String()))
			return
		}
		parts = append(parts, fmt.Sprintf("%s=%q", name, pv.String()))
	})
	if len(parts) == 0 {
		return ""
	}
	return " " + strings.Join(parts, " ")
}
