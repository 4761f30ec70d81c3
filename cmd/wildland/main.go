// Command wildland is a thin demonstration entrypoint over the resolver and
// mount controller: resolve a WildlandPath, read a file through it, or run
// a one-shot mount_many against the locally loaded manifest set. It is not
// the Wildland CLI surface (spec section 1's Non-goals exclude that); it
// exists to exercise client/search/mount from the command line the way the
// teacher's cmd/dist is a thin wrapper over its own client package.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wildland-go/wildland/client"
	"github.com/wildland-go/wildland/config"
	"github.com/wildland-go/wildland/mount"
	"github.com/wildland-go/wildland/search"
	"github.com/wildland-go/wildland/sig"
	"github.com/wildland-go/wildland/wlpath"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "wildland",
		Short: "Resolve and mount Wildland paths",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to wildland config YAML (default: XDG config)")

	root.AddCommand(resolveCmd(), catCmd(), mountCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadClient() (*client.Client, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return client.New(cfg, sig.NewContext(false))
}

func resolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <wildland-path>",
		Short: "Print the containers a WildlandPath resolves to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadClient()
			if err != nil {
				return err
			}
			wl, err := wlpath.Parse(args[0])
			if err != nil {
				return err
			}
			steps, err := search.New(c, wl).ResolveContainers()
			if err != nil {
				return err
			}
			for _, step := range steps {
				uuid, _ := step.Container.UUID()
				fmt.Printf("%s\t%s\n", step.Owner, uuid)
			}
			return nil
		},
	}
}

func catCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cat <wildland-path-with-file>",
		Short: "Print the file a WildlandPath resolves to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadClient()
			if err != nil {
				return err
			}
			wl, err := wlpath.Parse(args[0])
			if err != nil {
				return err
			}
			data, err := search.New(c, wl).ReadFile()
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(data)
			return err
		},
	}
}

func mountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mount",
		Short: "Mount every locally loaded container",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadClient()
			if err != nil {
				return err
			}
			cfg := c.Config
			ctl := mount.New(c, cfg)

			var plan []mount.PlanEntry
			for _, container := range c.Containers() {
				storages, err := container.LoadStorages(c, true)
				if err != nil {
					fmt.Fprintf(os.Stderr, "wildland: skipping container, storage load failed: %v\n", err)
					continue
				}
				plan = append(plan, mount.PlanEntry{
					Container: container,
					Storages:  storages,
					UserPaths: container.ExpandedPaths(),
				})
			}

			if err := ctl.MountMany(context.Background(), plan); err != nil {
				return err
			}
			for _, m := range ctl.Table.All() {
				for _, p := range m.Paths {
					fmt.Println(p)
				}
			}
			return nil
		},
	}
}
