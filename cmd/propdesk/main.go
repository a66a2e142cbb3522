// Package main boots the propdesk terminal client for the remote
// properties and clients API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"propdesk/internal/config"
	"propdesk/internal/filter"
	"propdesk/internal/gateway"
	"propdesk/internal/model"
	"propdesk/internal/mutate"
	"propdesk/internal/obs"
	"propdesk/internal/querycache"
	"propdesk/internal/view"
)

const usage = `usage: propdesk <command> [flags]

commands:
  list             print a listing view once
  watch            follow a listing view until interrupted (SIGUSR1 acts as a focus event)
  get-property     print one property by id
  add-property     create a property from JSON on stdin
  edit-property    update a property from JSON on stdin
  delete-property  delete a property by id
  clients          manage the client roster (list|add|edit|delete)
`

type app struct {
	cfg   config.Config
	gw    *gateway.Client
	cache *querycache.Cache
	exec  *mutate.Executor
}

func main() {
	cfg := config.Load()
	obs.InitLoggerWith(cfg.LogLevel, cfg.LogFormat)

	gw := gateway.New(cfg.APIBaseURL, cfg.RequestTimeout)
	cache := querycache.New(cfg, fetchList(gw), fetchRecord(gw))
	defer cache.Close()
	a := &app{cfg: cfg, gw: gw, cache: cache, exec: mutate.New(gw, cache)}

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	var err error
	switch os.Args[1] {
	case "list":
		err = a.list(os.Args[2:])
	case "watch":
		err = a.watch(os.Args[2:])
	case "get-property":
		err = a.getProperty(os.Args[2:])
	case "add-property":
		err = a.mutateProperty(os.Args[2:], "add")
	case "edit-property":
		err = a.mutateProperty(os.Args[2:], "edit")
	case "delete-property":
		err = a.deleteProperty(os.Args[2:])
	case "clients":
		err = a.clients(os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "propdesk:", describe(err))
		os.Exit(1)
	}
}

// fetchList adapts the gateway to the cache's list fetch contract.
func fetchList(gw *gateway.Client) querycache.FetchFunc {
	return func(ctx context.Context, kind model.Kind, filters map[string]string) (any, error) {
		switch kind {
		case model.KindClients:
			q := gateway.ClientQuery{Search: filters["search"], Requirement: filters["requirement"]}
			if n, err := strconv.Atoi(filters["page"]); err == nil {
				q.Page = n
			}
			if n, err := strconv.Atoi(filters["limit"]); err == nil {
				q.Limit = n
			}
			page, err := gw.ListClients(ctx, q)
			if err != nil {
				return nil, err
			}
			return page, nil
		default:
			q := gateway.PropertyQuery{
				Type:      filters["type"],
				MinPrice:  filters["minPrice"],
				MaxPrice:  filters["maxPrice"],
				BHK:       filters["bhk"],
				Ownership: filters["ownership"],
				Sector:    filters["sector"],
			}
			return gw.ListProperties(ctx, q)
		}
	}
}

func fetchRecord(gw *gateway.Client) querycache.FetchRecordFunc {
	return func(ctx context.Context, kind model.Kind, id string) (any, error) {
		if kind == model.KindClients {
			return gw.GetClient(ctx, id)
		}
		return gw.GetProperty(ctx, id)
	}
}

func viewFlags(fs *flag.FlagSet) (*string, *model.FilterState) {
	name := fs.String("view", string(filter.SellAvailable), "listing view (sell|rent|lease)-(available|sold)")
	state := &model.FilterState{}
	fs.StringVar(&state.SearchText, "search", "", "free-text search")
	fs.StringVar(&state.MinPrice, "min-price", "", "minimum price in rupees")
	fs.StringVar(&state.MaxPrice, "max-price", "", "maximum price in rupees")
	fs.StringVar(&state.BHK, "bhk", "", "room count (1-5, RK, None)")
	fs.StringVar(&state.Ownership, "ownership", "", "HP, Freehold or Lease")
	fs.StringVar(&state.Sector, "sector", "", "sector")
	fs.StringVar(&state.Category, "category", "", "residential or commercial")
	return name, state
}

func resolveView(name string) (filter.View, error) {
	for _, v := range filter.Views {
		if string(v) == name {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown view %q", name)
}

func (a *app) list(args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	name, state := viewFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	v, err := resolveView(*name)
	if err != nil {
		return err
	}

	updates := make(chan view.PropertyUpdate, 4)
	b := view.NewPropertyBinding(a.cache, v, a.cfg.SearchDebounce, func(u view.PropertyUpdate) {
		updates <- u
	})
	defer b.Close()
	b.SetFilters(*state)

	deadline := time.After(a.cfg.RequestTimeout + time.Second)
	for {
		select {
		case u := <-updates:
			if u.Status == querycache.StatusError {
				return u.Err
			}
			if u.Status != querycache.StatusSuccess {
				continue
			}
			printProperties(u)
			return nil
		case <-deadline:
			return fmt.Errorf("timed out waiting for %s", v)
		}
	}
}

func (a *app) watch(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	name, state := viewFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	v, err := resolveView(*name)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a.cache.Start(ctx)

	b := view.NewPropertyBinding(a.cache, v, a.cfg.SearchDebounce, printProperties)
	defer b.Close()
	b.SetFilters(*state)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1)
	for s := range sigc {
		if s == syscall.SIGUSR1 {
			// The terminal equivalent of the tab regaining focus.
			a.cache.NotifyFocus()
			continue
		}
		obs.Logger.Info("watch_stopped", "signal", s.String())
		return nil
	}
	return nil
}

func (a *app) getProperty(args []string) error {
	fs := flag.NewFlagSet("get-property", flag.ExitOnError)
	id := fs.String("id", "", "property id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return errors.New("missing -id")
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.RequestTimeout+time.Second)
	defer cancel()
	rec, err := a.cache.GetRecord(ctx, model.KindProperties, *id)
	if err != nil {
		return err
	}
	return json.NewEncoder(os.Stdout).Encode(rec)
}

func (a *app) mutateProperty(args []string, op string) error {
	fs := flag.NewFlagSet(op+"-property", flag.ExitOnError)
	id := fs.String("id", "", "property id (edit only)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	var p model.Property
	if err := json.NewDecoder(os.Stdin).Decode(&p); err != nil {
		return fmt.Errorf("decode property JSON: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.RequestTimeout+time.Second)
	defer cancel()

	var res mutate.Result
	if op == "edit" {
		if *id == "" {
			return errors.New("missing -id")
		}
		res = a.exec.UpdateProperty(ctx, *id, p)
	} else {
		res = a.exec.CreateProperty(ctx, p)
	}
	if !res.Ok() {
		return res.Err
	}
	return json.NewEncoder(os.Stdout).Encode(res.Entity)
}

func (a *app) deleteProperty(args []string) error {
	fs := flag.NewFlagSet("delete-property", flag.ExitOnError)
	id := fs.String("id", "", "property id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.RequestTimeout+time.Second)
	defer cancel()
	if res := a.exec.DeleteProperty(ctx, *id); !res.Ok() {
		return res.Err
	}
	fmt.Println("deleted", *id)
	return nil
}

func (a *app) clients(args []string) error {
	if len(args) < 1 {
		return errors.New("usage: propdesk clients <list|add|edit|delete> [flags]")
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.RequestTimeout+time.Second)
	defer cancel()

	switch args[0] {
	case "list":
		fs := flag.NewFlagSet("clients list", flag.ExitOnError)
		search := fs.String("search", "", "free-text search")
		requirement := fs.String("requirement", "", "Sale, Purchase, Rent or Lease")
		page := fs.Int("page", 1, "page number")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		result, err := a.gw.ListClients(ctx, gateway.ClientQuery{
			Page: *page, Limit: a.cfg.ClientPageSize, Search: *search, Requirement: *requirement,
		})
		if err != nil {
			return err
		}
		printClients(result)
		return nil
	case "add", "edit":
		fs := flag.NewFlagSet("clients "+args[0], flag.ExitOnError)
		id := fs.String("id", "", "client id (edit only)")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		var cl model.Client
		if err := json.NewDecoder(os.Stdin).Decode(&cl); err != nil {
			return fmt.Errorf("decode client JSON: %w", err)
		}
		var res mutate.Result
		if args[0] == "edit" {
			if *id == "" {
				return errors.New("missing -id")
			}
			res = a.exec.UpdateClient(ctx, *id, cl)
		} else {
			res = a.exec.CreateClient(ctx, cl)
		}
		if !res.Ok() {
			return res.Err
		}
		return json.NewEncoder(os.Stdout).Encode(res.Entity)
	case "delete":
		fs := flag.NewFlagSet("clients delete", flag.ExitOnError)
		id := fs.String("id", "", "client id")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if res := a.exec.DeleteClient(ctx, *id); !res.Ok() {
			return res.Err
		}
		fmt.Println("deleted", *id)
		return nil
	default:
		return fmt.Errorf("unknown clients command %q", args[0])
	}
}

func printProperties(u view.PropertyUpdate) {
	if u.Status == querycache.StatusError {
		fmt.Fprintln(os.Stderr, "fetch failed:", describe(u.Err))
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tSECTOR\tBLOCK\tNO\tBHK\tOWNERSHIP\tPRICE\tPHONE")
	for _, p := range u.Visible {
		no := p.HouseNo
		if no == "" {
			no = p.ShopNo
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			p.ID, p.Title, p.Sector, p.Block, no, p.BHK, p.Ownership, p.Price, p.PhoneNumber)
	}
	w.Flush()
	fmt.Printf("showing %d of %d properties\n", len(u.Visible), u.Total)
}

func printClients(page model.ClientPage) {
	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPHONE\tREQUIREMENT\tBUDGET")
	for _, c := range page.Clients {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s - %s\n",
			c.ID, c.ClientName, c.PhoneNumber, c.Requirement, c.BudgetMin, c.BudgetMax)
	}
	w.Flush()
	if page.Pagination != nil {
		fmt.Printf("page %d of %d\n", page.Pagination.CurrentPage, page.Pagination.TotalPages)
	}
}

// describe turns a classified error into the user-facing line.
func describe(err error) string {
	var (
		ve *mutate.ValidationError
		nf *mutate.NotFoundError
		fe *mutate.ForbiddenError
		se *mutate.ServerError
		ne *gateway.NetworkError
	)
	switch {
	case errors.As(err, &ve):
		return "invalid input: " + ve.Error()
	case errors.As(err, &nf):
		return "already gone: " + nf.ID
	case errors.As(err, &fe):
		return fe.Error()
	case errors.As(err, &se):
		return se.Error() + " (try again later)"
	case errors.As(err, &ne):
		return "network problem: " + ne.Error() + " (check connectivity and retry)"
	default:
		return err.Error()
	}
}
