package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"

	"cafeconnect/internal/cart"
	"cafeconnect/internal/catalog"
	"cafeconnect/internal/checkout"
	"cafeconnect/internal/config"
	"cafeconnect/internal/history"
	"cafeconnect/internal/metrics"
	"cafeconnect/internal/model"
	"cafeconnect/internal/orderstatus"
	"cafeconnect/internal/prefs"
	"cafeconnect/internal/session"
	"cafeconnect/internal/snapshot"
	"cafeconnect/internal/state"
	"cafeconnect/internal/table"
)

// Options holds the per-run flags that are not part of the config file.
type Options struct {
	ConfigPath string
	Table      string
	Scan       string
	Add        string
	Category   string
	Search     string
	Menu       bool
	Orders     bool
	Tip        string
	TipAmount  string
	Pay        string
	Rate       int
	Backup     bool
	Restore    bool
	NoWait     bool
}

func main() {
	opts, cfg, err := readFlags(os.Args[1:])
	if err != nil {
		log.Fatalf("cafe: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, opts, cfg); err != nil {
		log.Fatalf("cafe failed: %v", err)
	}
}

func readFlags(args []string) (Options, config.Config, error) {
	var o Options
	fs := flag.NewFlagSet("cafe", flag.ExitOnError)
	fs.StringVar(&o.ConfigPath, "config", "", "YAML config file")
	fs.StringVar(&o.Table, "table", "", "table number typed by the guest")
	fs.StringVar(&o.Scan, "scan", "", "decoded payload of the table code (overrides -table)")
	fs.StringVar(&o.Add, "add", "", "items to add, e.g. 1:2,5 (id[:qty] list)")
	fs.StringVar(&o.Category, "category", "", "menu category filter: Coffee|Food|Drinks")
	fs.StringVar(&o.Search, "search", "", "menu name search")
	fs.BoolVar(&o.Menu, "menu", false, "print the menu and exit")
	fs.BoolVar(&o.Orders, "orders", false, "print the order history and exit")
	fs.StringVar(&o.Tip, "tip", "", "tip percentage, e.g. 15 (defaults to the saved preference)")
	fs.StringVar(&o.TipAmount, "tip-amount", "", "custom tip amount, overrides -tip")
	fs.StringVar(&o.Pay, "pay", "", "pay with card|applePay|googlePay|cashAtCounter; without it only the cart is shown")
	fs.IntVar(&o.Rate, "rate", 0, "rate the completed order 1-5")
	fs.BoolVar(&o.Backup, "backup", false, "snapshot the local records before exiting")
	fs.BoolVar(&o.Restore, "restore", false, "restore the latest snapshot before starting")
	fs.BoolVar(&o.NoWait, "no-wait", false, "do not follow the order status after paying")
	overrides := config.BindFlags(fs)
	if err := fs.Parse(args); err != nil {
		return Options{}, config.Config{}, err
	}
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return Options{}, config.Config{}, err
	}
	overrides.Apply(&cfg)
	if err := cfg.Validate(); err != nil {
		return Options{}, config.Config{}, err
	}
	return o, cfg, nil
}

func run(ctx context.Context, o Options, cfg config.Config) error {
	log.Printf("starting cafe with store=%s source=%s", cfg.Store.Backend, cfg.Status.Source)

	st, err := state.Open(cfg.Store.Backend, cfg.Store.Dir)
	if err != nil {
		return errors.Wrap(err, "open store")
	}
	defer st.Close()

	snap := snapshot.NewFilesystemSnapshotter(cfg.SnapshotDir, log.Default())
	if o.Restore {
		n, err := snap.RestoreLatest(st)
		if err != nil {
			return errors.Wrap(err, "restore")
		}
		log.Printf("restored %d records", n)
	}
	if o.Backup {
		defer func() {
			if m, err := snap.Backup(st); err != nil {
				log.Printf("backup failed: %v", err)
			} else {
				log.Printf("backup %s published (%d records)", m.SnapshotID, m.Keys)
			}
		}()
	}

	mreg := metrics.NewRegistry()
	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", mreg.Handler())
			mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok"})
			})
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				log.Printf("metrics server: %v", err)
			}
		}()
	}

	menu := catalog.Default()
	if cfg.CatalogFile != "" {
		if menu, err = catalog.Load(cfg.CatalogFile); err != nil {
			return err
		}
	}
	if o.Menu {
		printMenu(menu, model.Category(o.Category), o.Search)
		return nil
	}

	orders := history.NewStoreLog(st)
	if o.Orders {
		return printOrders(orders)
	}
	var hist history.Log = orders
	if cfg.HistoryDir != "" {
		fl, err := history.NewFileLog(cfg.HistoryDir, "receipts.jsonl")
		if err != nil {
			return errors.Wrap(err, "init receipts journal")
		}
		hist = history.NewMultiLog(orders, fl)
	}

	src, closeSrc, err := buildSource(cfg)
	if err != nil {
		return err
	}
	defer closeSrc()

	tableNumber, err := resolveTable(o)
	if err != nil {
		return err
	}
	rate, err := cfg.Rate()
	if err != nil {
		return err
	}
	sess, err := session.New(tableNumber, session.Deps{
		Store:   st,
		Catalog: menu,
		Builder: checkout.NewBuilder(checkout.WithHistory(hist), checkout.WithMetrics(mreg)),
		Source:  src,
		TaxRate: &rate,
		Metrics: mreg,
	})
	if err != nil {
		if sess == nil {
			return err
		}
		log.Printf("warning: saved cart could not be restored: %v", err)
	}
	defer sess.End()

	adds, err := parseAdds(o.Add)
	if err != nil {
		return err
	}
	for _, a := range adds {
		if err := sess.Add(a.id, a.qty); err != nil {
			if errors.Is(err, cart.ErrPersistenceFailed) {
				log.Printf("warning: cart kept in memory only: %v", err)
				continue
			}
			return err
		}
	}
	printCart(sess)
	if o.Pay == "" {
		return nil
	}

	method, err := model.ParsePaymentMethod(o.Pay)
	if err != nil {
		return err
	}
	p, err := prefs.Load(st)
	if err != nil {
		log.Printf("warning: preferences unreadable, using defaults: %v", err)
	}
	tip, err := tipPolicy(o, p)
	if err != nil {
		return err
	}
	order, err := sess.Checkout(tip, method)
	if err != nil {
		if !checkout.IsWarning(err) {
			return err
		}
		log.Printf("warning: %v", err)
	}
	printReceipt(order, method)
	if o.NoWait {
		return nil
	}

	tr, err := sess.Track(ctx, order, orderstatus.OnTransition(func(t orderstatus.Transition) {
		fmt.Printf("[%s] %s", t.At.Local().Format("15:04:05"), t.To.Label())
		if t.EstimatedMinutes > 0 {
			fmt.Printf(" (about %d min)", t.EstimatedMinutes)
		}
		fmt.Println()
	}))
	if err != nil {
		return err
	}
	fmt.Printf("Order #%s: %s (about %d min)\n", shortID(order.ID), order.Status.Label(), tr.EstimatedMinutes())
	<-tr.Done()
	if tr.Status() != model.StatusCompleted {
		log.Printf("stopped following order %s at %s", order.ID, tr.Status())
		return nil
	}
	if o.Rate != 0 {
		if _, err := tr.SubmitRating(o.Rate); err != nil {
			return err
		}
		fmt.Printf("Thanks for rating us %d/5\n", o.Rate)
	}
	return nil
}

func resolveTable(o Options) (string, error) {
	if o.Scan != "" {
		return table.FromScan(o.Scan)
	}
	return table.FromInput(o.Table)
}

func buildSource(cfg config.Config) (orderstatus.Source, func(), error) {
	switch cfg.Status.Source {
	case config.SourceKafka:
		return orderstatus.NewKafkaSource(cfg.Status.Kafka.Bootstrap, cfg.Status.Kafka.Topic, log.Default()), func() {}, nil
	case config.SourceNATS:
		nc, err := nats.Connect(cfg.Status.NATS.URL)
		if err != nil {
			return nil, nil, errors.Wrap(err, "nats connect")
		}
		return orderstatus.NewNATSSource(nc, cfg.Status.NATS.Prefix, log.Default()), nc.Close, nil
	}
	offsets, err := cfg.ScheduleOffsets()
	if err != nil {
		return nil, nil, err
	}
	var steps []orderstatus.Step
	if offsets != nil {
		if steps, err = orderstatus.ScheduleFromOffsets(offsets); err != nil {
			return nil, nil, err
		}
	}
	return orderstatus.NewSimulatedSource(steps), func() {}, nil
}

type addition struct {
	id  string
	qty int
}

// parseAdds reads "id[:qty],..." lists.
func parseAdds(s string) ([]addition, error) {
	var out []addition
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, qtyStr, found := strings.Cut(part, ":")
		a := addition{id: strings.TrimSpace(id), qty: 1}
		if found {
			q, err := strconv.Atoi(strings.TrimSpace(qtyStr))
			if err != nil {
				return nil, errors.Wrapf(err, "quantity for item %s", a.id)
			}
			a.qty = q
		}
		out = append(out, a)
	}
	return out, nil
}

func tipPolicy(o Options, p model.Preferences) (checkout.TipPolicy, error) {
	if o.TipAmount != "" {
		amt, err := decimal.NewFromString(o.TipAmount)
		if err != nil {
			return nil, errors.Wrap(err, "tip amount")
		}
		return checkout.CustomTip(amt), nil
	}
	if o.Tip != "" {
		pct, err := decimal.NewFromString(strings.TrimSuffix(o.Tip, "%"))
		if err != nil {
			return nil, errors.Wrap(err, "tip percentage")
		}
		return checkout.PercentTip(pct.Shift(-2)), nil
	}
	return checkout.PercentTip(p.DefaultTip), nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func printMenu(menu *catalog.Catalog, cat model.Category, search string) {
	for _, it := range menu.Filter(cat, search) {
		fmt.Printf("%-3s %-14s %-7s %s\n", it.ID, it.Name, it.Category, model.FormatMoney(it.Price))
	}
}

func printCart(s *session.Session) {
	c := s.Cart()
	fmt.Printf("Table %s, %d item(s)\n", s.Table(), c.ItemCount())
	for _, l := range c.Lines() {
		fmt.Printf("  %dx %-14s %s\n", l.Quantity, l.Name, model.FormatMoney(l.LineTotal()))
	}
	fmt.Printf("  Subtotal %s\n  Tax      %s\n  Total    %s\n",
		model.FormatMoney(c.Subtotal()), model.FormatMoney(c.Tax()), model.FormatMoney(c.Total()))
}

func printReceipt(o model.Order, method model.PaymentMethod) {
	fmt.Printf("Paid %s with %s\n", model.FormatMoney(o.Total), method.Label())
	fmt.Printf("  Subtotal %s\n  Tax      %s\n  Tip      %s\n  Total    %s\n",
		model.FormatMoney(o.Subtotal), model.FormatMoney(o.Tax), model.FormatMoney(o.Tip), model.FormatMoney(o.Total))
}

func printOrders(l *history.StoreLog) error {
	orders, err := l.List()
	if err != nil {
		return err
	}
	for _, o := range orders {
		fmt.Printf("%s table %-4s %s %-9s %s\n", o.CreatedAt.Local().Format("2006-01-02 15:04"), o.TableNumber,
			shortID(o.ID), o.Status, model.FormatMoney(o.Total))
	}
	return nil
}
