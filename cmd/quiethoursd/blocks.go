package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli"

	"quiethours/internal/app"
	"quiethours/internal/lifecycle"
	"quiethours/internal/storage"
)

var (
	blockOwner    string
	blockTitle    string
	blockDesc     string
	blockSubject  string
	blockPriority string
	blockStart    string
	blockEnd      string

	listFilter string
	listLimit  int
	listOffset int
	listDesc   bool
)

var blocksCommand = cli.Command{
	Name:  "blocks",
	Usage: "manage study blocks",
	Subcommands: []cli.Command{
		{
			Name:  "add",
			Usage: "schedule a new block",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "owner, o", Usage: "owner id (required)", Destination: &blockOwner},
				cli.StringFlag{Name: "title, t", Usage: "block title (required)", Destination: &blockTitle},
				cli.StringFlag{Name: "desc, d", Usage: "description", Destination: &blockDesc},
				cli.StringFlag{Name: "subject, s", Usage: "subject (defaults to Other)", Destination: &blockSubject},
				cli.StringFlag{Name: "priority, p", Usage: "low, medium or high (default medium)", Destination: &blockPriority},
				cli.StringFlag{Name: "start", Usage: "start time (RFC3339 or \"2006-01-02 15:04\")", Destination: &blockStart},
				cli.StringFlag{Name: "end", Usage: "end time (RFC3339 or \"2006-01-02 15:04\")", Destination: &blockEnd},
			},
			Action: blocksAdd,
		},
		{
			Name:  "ls",
			Usage: "list an owner's blocks",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "owner, o", Usage: "owner id (required)", Destination: &blockOwner},
				cli.StringFlag{Name: "filter, f", Usage: "all, upcoming, past or active", Destination: &listFilter},
				cli.IntFlag{Name: "limit, n", Usage: "page size (default 20)", Value: 20, Destination: &listLimit},
				cli.IntFlag{Name: "offset", Usage: "page offset", Destination: &listOffset},
				cli.BoolFlag{Name: "desc", Usage: "newest first", Destination: &listDesc},
			},
			Action: blocksList,
		},
		{
			Name:      "rm",
			Usage:     "delete a block by id",
			ArgsUsage: "<block-id>",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "owner, o", Usage: "owner id (required)", Destination: &blockOwner},
			},
			Action: blocksRemove,
		},
		{
			Name:      "edit",
			Usage:     "update fields of a block; omitted flags stay unchanged",
			ArgsUsage: "<block-id>",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "owner, o", Usage: "owner id (required)", Destination: &blockOwner},
				cli.StringFlag{Name: "title, t", Destination: &blockTitle},
				cli.StringFlag{Name: "desc, d", Destination: &blockDesc},
				cli.StringFlag{Name: "subject, s", Destination: &blockSubject},
				cli.StringFlag{Name: "priority, p", Destination: &blockPriority},
				cli.StringFlag{Name: "start", Destination: &blockStart},
				cli.StringFlag{Name: "end", Destination: &blockEnd},
			},
			Action: blocksEdit,
		},
	},
}

var ownerEmail string

var ownerCommand = cli.Command{
	Name:  "owner",
	Usage: "manage owner contact addresses",
	Subcommands: []cli.Command{
		{
			Name:  "set",
			Usage: "record or replace an owner's email address",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "owner, o", Usage: "owner id (required)", Destination: &blockOwner},
				cli.StringFlag{Name: "email, e", Usage: "email address (required)", Destination: &ownerEmail},
			},
			Action: ownerSet,
		},
	},
}

// parseTime accepts RFC3339 or a local "2006-01-02 15:04" form.
func parseTime(flag, raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("--%s is required", flag)
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s: cannot parse %q", flag, raw)
	}
	return t, nil
}

func withApp(fn func(ctx context.Context, a *app.App) error) error {
	a, err := app.NewApp(cfgPath)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()
	return fn(context.Background(), a)
}

func blocksAdd(*cli.Context) error {
	start, err := parseTime("start", blockStart)
	if err != nil {
		return err
	}
	end, err := parseTime("end", blockEnd)
	if err != nil {
		return err
	}
	return withApp(func(ctx context.Context, a *app.App) error {
		v, err := a.Blocks().Create(ctx, lifecycle.CreateInput{
			OwnerID:     blockOwner,
			Title:       blockTitle,
			Description: blockDesc,
			Subject:     blockSubject,
			Priority:    blockPriority,
			StartTime:   start,
			EndTime:     end,
		})
		if err != nil {
			return err
		}
		fmt.Printf("created %s: %q %s - %s (%d min, %s/%s)\n",
			v.ID, v.Title,
			v.StartTime.Format(time.RFC3339), v.EndTime.Format(time.RFC3339),
			v.DurationMinutes, v.Subject, v.Priority)
		return nil
	})
}

func blocksList(*cli.Context) error {
	if blockOwner == "" {
		return fmt.Errorf("--owner is required")
	}
	filter := storage.ListFilter(strings.ToLower(strings.TrimSpace(listFilter)))
	switch filter {
	case storage.FilterAll, storage.FilterUpcoming, storage.FilterPast, storage.FilterActive:
	case "all":
		filter = storage.FilterAll
	default:
		return fmt.Errorf("--filter: unknown value %q", listFilter)
	}

	return withApp(func(ctx context.Context, a *app.App) error {
		views, total, err := a.Blocks().List(ctx, blockOwner, storage.ListQuery{
			Filter: filter,
			Limit:  listLimit,
			Offset: listOffset,
			Desc:   listDesc,
		})
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tSUBJECT\tPRI\tSTART\tEND\tSTATE\tREMINDED")
		for _, v := range views {
			state := "past"
			if v.IsActive {
				state = "active"
			} else if v.IsUpcoming {
				state = "upcoming"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%v\n",
				v.ID, v.Title, v.Subject, v.Priority,
				v.StartTime.Format("2006-01-02 15:04"),
				v.EndTime.Format("2006-01-02 15:04"),
				state, v.ReminderSent)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Printf("%d of %d block(s)\n", len(views), total)
		return nil
	})
}

func blocksRemove(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return fmt.Errorf("block id argument is required")
	}
	if blockOwner == "" {
		return fmt.Errorf("--owner is required")
	}
	return withApp(func(ctx context.Context, a *app.App) error {
		res, err := a.Blocks().Delete(ctx, id, blockOwner)
		if err != nil {
			return err
		}
		fmt.Printf("deleted %s (%s block)\n", id, res)
		return nil
	})
}

func blocksEdit(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return fmt.Errorf("block id argument is required")
	}
	if blockOwner == "" {
		return fmt.Errorf("--owner is required")
	}

	var p lifecycle.Patch
	if c.IsSet("title") {
		p.Title = &blockTitle
	}
	if c.IsSet("desc") {
		p.Description = &blockDesc
	}
	if c.IsSet("subject") {
		p.Subject = &blockSubject
	}
	if c.IsSet("priority") {
		p.Priority = &blockPriority
	}
	if c.IsSet("start") {
		t, err := parseTime("start", blockStart)
		if err != nil {
			return err
		}
		p.StartTime = &t
	}
	if c.IsSet("end") {
		t, err := parseTime("end", blockEnd)
		if err != nil {
			return err
		}
		p.EndTime = &t
	}

	return withApp(func(ctx context.Context, a *app.App) error {
		v, err := a.Blocks().Update(ctx, id, blockOwner, p)
		if err != nil {
			return err
		}
		fmt.Printf("updated %s: %q %s - %s\n",
			v.ID, v.Title, v.StartTime.Format(time.RFC3339), v.EndTime.Format(time.RFC3339))
		return nil
	})
}

func ownerSet(*cli.Context) error {
	if blockOwner == "" {
		return fmt.Errorf("--owner is required")
	}
	if strings.TrimSpace(ownerEmail) == "" || !strings.Contains(ownerEmail, "@") {
		return fmt.Errorf("--email: valid address required")
	}
	return withApp(func(ctx context.Context, a *app.App) error {
		if err := a.Store().UpsertOwner(ctx, blockOwner, strings.TrimSpace(ownerEmail)); err != nil {
			return err
		}
		fmt.Printf("owner %s -> %s\n", blockOwner, strings.TrimSpace(ownerEmail))
		return nil
	})
}
