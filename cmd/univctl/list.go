package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/univ-admin-client/pkg/client"
	"github.com/Sternrassler/univ-admin-client/pkg/models"
	"github.com/Sternrassler/univ-admin-client/pkg/pagination"
	"github.com/Sternrassler/univ-admin-client/pkg/screens"
)

type listOptions struct {
	pages      int
	all        bool
	faculty    int
	cathedra   int
	workers    int
	settleWait time.Duration
}

func newListCmd(c *cli) *cobra.Command {
	opts := listOptions{}
	cmd := &cobra.Command{
		Use:       "list <" + strings.Join(screens.Names, "|") + ">",
		Short:     "Page through a list screen",
		Long:      "Opens the screen, loads the first page and keeps scrolling until --pages pages are shown or the list ends. --all fetches every page concurrently instead.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: screens.Names,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, c, args[0], opts)
		},
	}
	f := cmd.Flags()
	f.IntVar(&opts.pages, "pages", 1, "pages to scroll through")
	f.BoolVar(&opts.all, "all", false, "fetch every page concurrently")
	f.IntVar(&opts.workers, "workers", pagination.DefaultConfig().MaxConcurrency, "concurrent requests with --all")
	f.IntVar(&opts.faculty, "faculty", 0, "faculty id (cathedras, all faculties when omitted)")
	f.IntVar(&opts.cathedra, "cathedra", 0, "cathedra id (groups)")
	f.DurationVar(&opts.settleWait, "timeout", time.Minute, "give up after this long")
	return cmd
}

func runList(cmd *cobra.Command, c *cli, name string, opts listOptions) error {
	a := c.app
	out := cmd.OutOrStdout()
	switch name {
	case screens.NameFaculties:
		return showList(cmd, a.Faculties(), a.API.FacultiesSource(), opts, func(f models.Faculty) string {
			return fmt.Sprintf("%5d  %-40s cathedras: %d", f.ID, f.Name, f.CathedrasCount)
		})
	case screens.NameCathedras:
		return showList(cmd, a.Cathedras(opts.faculty), a.API.CathedrasSource(opts.faculty), opts, func(cat models.Cathedra) string {
			return fmt.Sprintf("%5d  %-40s groups: %d", cat.ID, cat.Name, cat.GroupsCount)
		})
	case screens.NameGroups:
		if opts.cathedra <= 0 {
			return fmt.Errorf("--cathedra is required for %s", name)
		}
		return showList(cmd, a.Groups(opts.cathedra), a.API.GroupsSource(opts.cathedra), opts, func(g models.Group) string {
			return fmt.Sprintf("%5d  %-20s semesters: %-3d students: %d", g.ID, g.Name, g.NumberOfSemesters, g.StudentsCount)
		})
	case screens.NameLessons:
		return showList(cmd, a.Lessons(), a.API.LessonsSource(), opts, func(l models.Lesson) string {
			return fmt.Sprintf("%5d  %-30s %s (%d groups)", l.ID, l.Name, l.Teacher.FullName(), len(l.Groups))
		})
	case screens.NamePaymentHistory:
		return showList(cmd, a.PaymentHistory(), a.API.BalanceHistorySource(), opts, func(p models.Payment) string {
			return fmt.Sprintf("%5d  %s  %-8s %+10.2f  balance %10.2f", p.ID, p.Date.Format("2006-01-02"), p.ActionType(), float64(p.Change), float64(p.Balance))
		})
	default:
		fmt.Fprintf(out, "screens: %s\n", strings.Join(screens.Names, ", "))
		return fmt.Errorf("unknown screen %q", name)
	}
}

func showList[T pagination.Identifiable](cmd *cobra.Command, screen *screens.Screen[T], source pagination.DataSource[T], opts listOptions, format func(T) string) error {
	defer screen.Close()
	ctx, cancel := context.WithTimeout(cmd.Context(), opts.settleWait)
	defer cancel()

	var items []T
	var err error
	if opts.all {
		items, err = pagination.NewBatchFetcher(source, pagination.Config{MaxConcurrency: opts.workers}).FetchAll(ctx)
	} else {
		items, err = scroll(ctx, screen, opts.pages)
	}

	printItems(cmd.OutOrStdout(), items, format)
	if err != nil {
		return describe(err)
	}
	return nil
}

// scroll opens screen and requests more until pages pages are shown or the
// list ends.
func scroll[T pagination.Identifiable](ctx context.Context, screen *screens.Screen[T], pages int) ([]T, error) {
	changed := make(chan struct{}, 1)
	unsubscribe := screen.Subscribe(func(pagination.Snapshot[T]) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	screen.OnAppear()
	for {
		select {
		case <-ctx.Done():
			return screen.Snapshot().Items(), ctx.Err()
		case <-changed:
		}

		s := screen.Snapshot()
		switch {
		case !s.Visible:
			// Logged out by a forbidden response
			return s.Items(), client.ErrSessionInvalidated
		case s.Loading:
			continue
		case s.Failed:
			select {
			case err, ok := <-screen.Errors():
				if ok {
					return s.Items(), err
				}
				return s.Items(), nil
			case <-ctx.Done():
				return s.Items(), ctx.Err()
			}
		case !s.HasMore() || s.CurrentPage >= pages:
			return s.Items(), nil
		default:
			screen.RequestMore()
		}
	}
}

func printItems[T any](out io.Writer, items []T, format func(T) string) {
	for _, item := range items {
		fmt.Fprintln(out, format(item))
	}
	fmt.Fprintf(out, "(%d items)\n", len(items))
}

// describe prefixes API errors with their localization key.
func describe(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, client.ErrSessionInvalidated) {
		return errors.New("session expired, sign in again")
	}
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %w", apiErr.LocalizationKey(), err)
	}
	return err
}
