package uds

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/zeptools/gw-typst/fonts"
	"github.com/zeptools/gw-typst/templates"
)

// FontCommands exposes the shared font catalog. fonts-reload is the only
// way the catalog is rebuilt after startup.
func FontCommands(reg *fonts.Registry) map[string]CmdHnd {
	return map[string]CmdHnd{
		"fonts-reload": {
			Desc: "rediscover fonts and swap the shared catalog",
			Fn: func(_ []string, w io.Writer) error {
				c := reg.Reload()
				_, err := fmt.Fprintf(w, "reloaded: %d faces, %d families\n", c.Len(), len(c.Book.Families()))
				return err
			},
		},
		"fonts-list": {
			Desc:  "list font families, optionally only those containing <substr>",
			Usage: "fonts-list [substr]",
			Fn: func(args []string, w io.Writer) error {
				c := reg.Catalog()
				for _, family := range c.Book.Families() {
					if len(args) > 0 && !containsFold(family, args[0]) {
						continue
					}
					if _, err := fmt.Fprintln(w, family); err != nil {
						return err
					}
				}
				_, err := fmt.Fprintf(w, "-- loaded at %s\n", reg.LoadedAt().UTC().Format(time.RFC3339))
				return err
			},
		},
	}
}

// TemplateCommands lists the names in store.
func TemplateCommands(store templates.Store, timeout time.Duration) map[string]CmdHnd {
	return map[string]CmdHnd{
		"templates-list": {
			Desc: "list template names",
			Fn: func(_ []string, w io.Writer) error {
				ctx, cancel := context.WithTimeout(context.Background(), timeout)
				defer cancel()
				names, err := store.List(ctx)
				if err != nil {
					return err
				}
				for _, name := range names {
					if _, err := fmt.Fprintln(w, name); err != nil {
						return err
					}
				}
				return nil
			},
		},
	}
}

// Merge combines command maps. Later maps win on duplicate names.
func Merge(maps ...map[string]CmdHnd) map[string]CmdHnd {
	out := make(map[string]CmdHnd)
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
