package loader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/vango-dev/retain/pkg/vdom"
)

// MaxSourceSize bounds the bytes read from a remote or on-disk template.
const MaxSourceSize = 4 << 20

// Locator fetches the renderer of one component.
type Locator interface {
	Locate(ctx context.Context, name string) (vdom.Renderer, error)
}

// LocatorFunc adapts a function to the Locator interface.
type LocatorFunc func(ctx context.Context, name string) (vdom.Renderer, error)

// Locate calls f(ctx, name).
func (f LocatorFunc) Locate(ctx context.Context, name string) (vdom.Renderer, error) {
	return f(ctx, name)
}

// Func returns a Locator for a renderer already linked into the program.
func Func(render vdom.Renderer) Locator {
	return LocatorFunc(func(context.Context, string) (vdom.Renderer, error) {
		return render, nil
	})
}

// SourceFunc fetches the raw bytes of a template.
type SourceFunc func(ctx context.Context) ([]byte, error)

// Source returns a Locator that compiles the template fetched by fetch.
// Fetch errors are load failures; bytes that do not parse as a template are
// reported as ErrBadExport.
func Source(fetch SourceFunc) Locator {
	return LocatorFunc(func(ctx context.Context, name string) (vdom.Renderer, error) {
		data, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		tree, err := ParseTemplate(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBadExport, err)
		}
		return Template(tree), nil
	})
}

// IsTemplateFile reports whether path has a template extension: .yaml, .yml
// or .rtpl.
func IsTemplateFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".rtpl":
		return true
	}
	return false
}

// File returns a Locator reading a template from path. Files ending in
// .yaml or .yml are parsed as YAML whatever their content.
func File(path string) Locator {
	return LocatorFunc(func(ctx context.Context, name string) (vdom.Renderer, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := readLimited(path)
		if err != nil {
			return nil, err
		}
		var tree *vdom.VNode
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			tree, err = ParseYAML(data)
		default:
			tree, err = ParseTemplate(data)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrBadExport, path, err)
		}
		return Template(tree), nil
	})
}

func readLimited(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readAll(f)
}

func readAll(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxSourceSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxSourceSize {
		return nil, fmt.Errorf("template larger than %d bytes", MaxSourceSize)
	}
	return data, nil
}

// HTTP returns a Locator fetching a template with a GET request. A nil
// client uses http.DefaultClient.
func HTTP(client *http.Client, url string) Locator {
	if client == nil {
		client = http.DefaultClient
	}
	return Source(func(ctx context.Context) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("GET %s: unexpected status %s", url, resp.Status)
		}
		return readAll(resp.Body)
	})
}

// ObjectGetter is the subset of the S3 client used by the S3 locator.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3 returns a Locator fetching a template object from a bucket.
//
//	cfg, _ := config.LoadDefaultConfig(ctx)
//	l.Register("Card", loader.S3(s3.NewFromConfig(cfg), "components", "card.rtpl"))
func S3(client ObjectGetter, bucket, key string) Locator {
	return Source(func(ctx context.Context) ([]byte, error) {
		out, err := client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return nil, fmt.Errorf("s3 get %s/%s: %w", bucket, key, err)
		}
		defer out.Body.Close()
		return readAll(out.Body)
	})
}
