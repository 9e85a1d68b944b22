// fvctl is the Frame Vist admin CLI.
//
// Usage:
//
//	fvctl health                  Check the storefront is up
//	fvctl reset                   Clear every store, cart and bundle
//	fvctl state                   Print the full state snapshot
//	fvctl load <file>             POST a state snapshot to /admin/state
//	fvctl orders [limit]          List recent orders
//	fvctl promos                  List promo codes
//	fvctl promo set <code> ...    Create or replace a promo code
//	fvctl promo rm <code>         Delete a promo code
//	fvctl analytics [window]      Show the dashboard summary (7d|30d|all)
//	fvctl test [path]             Run YAML smoke scenarios (default ./scenarios/)
//	fvctl token [subject]         Sign an admin token with FRAMEVIST_ADMIN_SECRET
//	fvctl target use <name>       Switch the active target
//	fvctl target set <n> <url>    Add or update a target
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/framevist/framevist/internal/analytics"
	"github.com/framevist/framevist/internal/api"
	"github.com/framevist/framevist/internal/catalog"
	"github.com/framevist/framevist/internal/client"
	"github.com/framevist/framevist/internal/config"
	"github.com/framevist/framevist/internal/scenario"
	"github.com/shopspring/decimal"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cmd, args, targetName := parseArgs()

	if cmd == "" || cmd == "help" || cmd == "--help" || cmd == "-h" {
		printUsage()
		if cmd == "" {
			os.Exit(1)
		}
		return
	}

	ctx := context.Background()
	var err error
	switch cmd {
	case "version", "--version", "-v":
		fmt.Printf("fvctl version %s\n", version)
		return
	case "token":
		err = cmdToken(args)
	case "target":
		err = cmdTarget(args)
	case "test":
		err = cmdTest(ctx, targetName, args)
	case "health", "reset", "state", "load", "orders", "promos", "promo", "analytics":
		var c *client.AdminClient
		c, err = newClient(targetName)
		if err == nil {
			err = runRemote(ctx, c, cmd, args)
		}
	default:
		fmt.Fprintf(os.Stderr, "fvctl: unknown command %q\n\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "fvctl: %v\n", err)
		os.Exit(1)
	}
}

// parseArgs extracts the subcommand, positional args and --target name.
func parseArgs() (command string, args []string, target string) {
	target = os.Getenv("FVCTL_TARGET")

	raw := os.Args[1:]
	var filtered []string
	for i := 0; i < len(raw); i++ {
		if raw[i] == "--target" && i+1 < len(raw) {
			target = raw[i+1]
			i++
			continue
		}
		filtered = append(filtered, raw[i])
	}

	if len(filtered) == 0 {
		return "", nil, target
	}
	return filtered[0], filtered[1:], target
}

func printUsage() {
	fmt.Printf(`fvctl - Frame Vist admin CLI %s

Usage:
  fvctl [--target <name>] <command> [arguments]

Commands:
  health                     Check the storefront is up
  reset                      Clear every store, cart and bundle
  state                      Print the full state snapshot
  load <file>                POST a state snapshot to /admin/state
  orders [limit]             List recent orders (default 20)
  promos                     List promo codes
  promo set <code> [flags]   Create or replace a promo code
                             (--type percentage|flat --value N --min N
                              --max-discount N --expires RFC3339 --label S)
  promo rm <code>            Delete a promo code
  analytics [window]         Dashboard summary (7d|30d|all, default all)
  test [path]                Run YAML smoke scenarios (default: ./scenarios/)
  token [subject]            Sign an admin token (--ttl 12h)
  target use <name>          Switch the active target
  target set <name> <url>    Add or update a target (--token <t>)
  version                    Print the fvctl version

Environment:
  FVCTL_TARGET              Override the active target
  FRAMEVIST_ADMIN_SECRET    Signing secret for the token command
  FRAMEVIST_ADMIN_TOKEN     Bearer token, overriding the target's token
`, version)
}

// resolveTarget returns the selected profile target with any token
// override from the environment applied.
func resolveTarget(targetName string) (config.Target, error) {
	path, err := config.ProfilePath()
	if err != nil {
		return config.Target{}, err
	}
	profile, err := config.LoadProfile(path)
	if err != nil {
		return config.Target{}, err
	}
	if targetName != "" {
		profile.Current = targetName
	}
	target, err := profile.Active()
	if err != nil {
		return config.Target{}, err
	}
	if env := os.Getenv("FRAMEVIST_ADMIN_TOKEN"); env != "" {
		target.Token = env
	}
	return target, nil
}

func newClient(targetName string) (*client.AdminClient, error) {
	target, err := resolveTarget(targetName)
	if err != nil {
		return nil, err
	}
	return client.New(target.URL, target.Token), nil
}

func runRemote(ctx context.Context, c *client.AdminClient, cmd string, args []string) error {
	switch cmd {
	case "health":
		ok, body := c.Health(ctx)
		if !ok {
			return fmt.Errorf("unhealthy: %s", body)
		}
		fmt.Println(body)
		return nil
	case "reset":
		body, err := c.Reset(ctx)
		if err != nil {
			return err
		}
		fmt.Println(body)
		return nil
	case "state":
		raw, err := c.State(ctx)
		if err != nil {
			return err
		}
		pretty, err := prettyJSON(raw)
		if err != nil {
			fmt.Println(string(raw))
			return nil
		}
		fmt.Println(pretty)
		return nil
	case "load":
		if len(args) != 1 {
			return errors.New("usage: fvctl load <file>")
		}
		body, err := c.Seed(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Println(body)
		return nil
	case "orders":
		return cmdOrders(ctx, c, args)
	case "promos":
		return cmdPromos(ctx, c)
	case "promo":
		return cmdPromo(ctx, c, args)
	case "analytics":
		return cmdAnalytics(ctx, c, args)
	}
	return fmt.Errorf("unknown command %q", cmd)
}

// prettyJSON re-formats raw JSON with indentation.
func prettyJSON(raw []byte) (string, error) {
	var parsed json.RawMessage
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", err
	}
	indented, err := json.MarshalIndent(parsed, "", "  ")
	if err != nil {
		return "", err
	}
	return string(indented), nil
}

// ---------------------------------------------------------------------------
// fvctl orders
// ---------------------------------------------------------------------------

func cmdOrders(ctx context.Context, c *client.AdminClient, args []string) error {
	limit := 20
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 {
			return fmt.Errorf("invalid limit %q", args[0])
		}
		limit = n
	}
	orders, err := c.ListOrders(ctx, limit)
	if err != nil {
		return err
	}
	if len(orders) == 0 {
		fmt.Println("No orders.")
		return nil
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tCUSTOMER\tITEMS\tPROMO\tTOTAL")
	for _, o := range orders {
		promo := o.PromoCode
		if promo == "" {
			promo = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			o.ID, o.CreatedAt.Local().Format(time.DateTime), o.CustomerEmail, len(o.Items), promo, o.Total.StringFixed(2))
	}
	return tw.Flush()
}

// ---------------------------------------------------------------------------
// fvctl promos / promo
// ---------------------------------------------------------------------------

func cmdPromos(ctx context.Context, c *client.AdminClient) error {
	promos, err := c.ListPromos(ctx)
	if err != nil {
		return err
	}
	if len(promos) == 0 {
		fmt.Println("No promo codes.")
		return nil
	}
	sort.Slice(promos, func(i, j int) bool { return promos[i].Code < promos[j].Code })
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tTYPE\tVALUE\tMIN SUBTOTAL\tEXPIRES")
	for _, p := range promos {
		expires := "never"
		if p.ExpiresAt != nil {
			expires = p.ExpiresAt.Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.Code, p.Type, p.Value.String(), p.MinimumSubtotal.StringFixed(2), expires)
	}
	return tw.Flush()
}

func cmdPromo(ctx context.Context, c *client.AdminClient, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: fvctl promo set|rm <code> [flags]")
	}
	code := catalog.NormalizeCode(args[1])
	switch args[0] {
	case "rm", "remove", "delete":
		if err := c.DeletePromo(ctx, code); err != nil {
			return err
		}
		fmt.Printf("Deleted promo %s\n", code)
		return nil
	case "set":
		promo, err := parsePromoFlags(code, args[2:])
		if err != nil {
			return err
		}
		saved, err := c.UpsertPromo(ctx, promo)
		if err != nil {
			return err
		}
		fmt.Printf("Saved promo %s (%s %s)\n", saved.Code, saved.Type, saved.Value.String())
		return nil
	}
	return fmt.Errorf("unknown promo subcommand %q", args[0])
}

func parsePromoFlags(code string, args []string) (catalog.PromoCode, error) {
	fs := flag.NewFlagSet("promo set", flag.ContinueOnError)
	kind := fs.String("type", string(catalog.PromoPercentage), "percentage or flat")
	value := fs.String("value", "0", "percent or amount off")
	minimum := fs.String("min", "0", "minimum subtotal")
	maxDiscount := fs.String("max-discount", "", "cap on the discount")
	expires := fs.String("expires", "", "expiry time (RFC3339)")
	label := fs.String("label", "", "display label")
	if err := fs.Parse(args); err != nil {
		return catalog.PromoCode{}, err
	}

	promo := catalog.PromoCode{Code: code, Label: *label, Type: catalog.PromoType(*kind)}
	var err error
	if promo.Value, err = decimal.NewFromString(*value); err != nil {
		return promo, fmt.Errorf("invalid --value: %w", err)
	}
	if promo.MinimumSubtotal, err = decimal.NewFromString(*minimum); err != nil {
		return promo, fmt.Errorf("invalid --min: %w", err)
	}
	if *maxDiscount != "" {
		d, err := decimal.NewFromString(*maxDiscount)
		if err != nil {
			return promo, fmt.Errorf("invalid --max-discount: %w", err)
		}
		promo.MaxDiscount = &d
	}
	if *expires != "" {
		t, err := time.Parse(time.RFC3339, *expires)
		if err != nil {
			return promo, fmt.Errorf("invalid --expires: %w", err)
		}
		promo.ExpiresAt = &t
	}
	return promo, promo.Normalize().Validate()
}

// ---------------------------------------------------------------------------
// fvctl analytics
// ---------------------------------------------------------------------------

func cmdAnalytics(ctx context.Context, c *client.AdminClient, args []string) error {
	raw := ""
	if len(args) > 0 {
		raw = args[0]
	}
	window, err := analytics.ParseWindow(raw)
	if err != nil {
		return err
	}
	s, err := c.Analytics(ctx, window)
	if err != nil {
		return err
	}

	fmt.Printf("Window:       %s\n", s.Window)
	fmt.Printf("Orders:       %d\n", s.Orders)
	fmt.Printf("Revenue:      %s\n", s.Revenue.StringFixed(2))
	fmt.Printf("Discounts:    %s\n", s.Discounts.StringFixed(2))
	fmt.Printf("Avg order:    %s\n", s.AverageOrderValue.StringFixed(2))
	estimated := ""
	if s.Funnel.Estimated {
		estimated = " (estimated)"
	}
	fmt.Printf("Funnel:       %d views, %d cart adds, %d purchases%s\n",
		s.Funnel.Views, s.Funnel.CartAdds, s.Funnel.Purchases, estimated)

	if len(s.TopCapsules) > 0 {
		fmt.Println()
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "CAPSULE\tTITLE\tPURCHASES\tREVENUE")
		for _, cs := range s.TopCapsules {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", cs.ID, cs.Title, cs.Purchases, cs.Revenue.StringFixed(2))
		}
		return tw.Flush()
	}
	return nil
}

// ---------------------------------------------------------------------------
// fvctl test [path]
// ---------------------------------------------------------------------------

func cmdTest(ctx context.Context, targetName string, args []string) error {
	target, err := resolveTarget(targetName)
	if err != nil {
		return err
	}

	path := "./scenarios/"
	if len(args) > 0 {
		path = args[0]
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("scenario path %s: %w", path, err)
	}

	var scenarios []*scenario.Scenario
	if info.IsDir() {
		if scenarios, err = scenario.LoadDir(path); err != nil {
			return err
		}
	} else {
		s, err := scenario.LoadScenario(path)
		if err != nil {
			return err
		}
		scenarios = append(scenarios, s)
	}
	if len(scenarios) == 0 {
		return fmt.Errorf("no scenario files found in %s", path)
	}

	runner := scenario.NewRunner(target.URL, target.Token)
	totalPassed, totalFailed := 0, 0
	for _, s := range scenarios {
		result, runErr := runner.Run(ctx, s)
		p, f := printScenarioResult(s, result, runErr)
		totalPassed += p
		totalFailed += f
	}

	fmt.Println()
	fmt.Printf("Results: %d passed, %d failed, %d total\n", totalPassed, totalFailed, totalPassed+totalFailed)
	if totalFailed > 0 {
		return fmt.Errorf("%d step(s) failed", totalFailed)
	}
	return nil
}

// printScenarioResult prints one scenario's steps and returns the counts.
func printScenarioResult(s *scenario.Scenario, result *scenario.Result, err error) (passed, failed int) {
	fmt.Printf("\n--- %s ---\n", s.Name)
	if s.Description != "" {
		fmt.Printf("    %s\n", s.Description)
	}
	fmt.Println()

	if err != nil {
		fmt.Printf("  ERROR: %v\n", err)
		return 0, 1
	}

	for _, sr := range result.Steps {
		if sr.Passed {
			fmt.Printf("  PASS  %-50s (%s)\n", sr.Name, sr.Duration.Round(time.Millisecond))
			passed++
			continue
		}
		fmt.Printf("  FAIL  %-50s (%s)\n", sr.Name, sr.Duration.Round(time.Millisecond))
		fmt.Printf("        %s\n", sr.Error)
		failed++
	}

	label := "PASS"
	if !result.Passed {
		label = "FAIL"
	}
	fmt.Printf("\n  Scenario: %s (%s)\n", label, result.Duration.Round(time.Millisecond))
	return passed, failed
}

// ---------------------------------------------------------------------------
// fvctl token
// ---------------------------------------------------------------------------

func cmdToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	ttl := fs.Duration("ttl", 12*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	subject := "fvctl"
	if fs.NArg() > 0 {
		subject = fs.Arg(0)
	}
	secret := os.Getenv("FRAMEVIST_ADMIN_SECRET")
	if secret == "" {
		return errors.New("FRAMEVIST_ADMIN_SECRET is not set")
	}
	token, err := api.NewAuthenticator(secret).Issue(subject, *ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

// ---------------------------------------------------------------------------
// fvctl target
// ---------------------------------------------------------------------------

func cmdTarget(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: fvctl target use|set|list ...")
	}
	path, err := config.ProfilePath()
	if err != nil {
		return err
	}
	profile, err := config.LoadProfile(path)
	if err != nil {
		return err
	}

	switch args[0] {
	case "list":
		names := make([]string, 0, len(profile.Targets))
		for name := range profile.Targets {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			marker := " "
			if name == profile.Current {
				marker = "*"
			}
			fmt.Printf("%s %-12s %s\n", marker, name, profile.Targets[name].URL)
		}
		return nil
	case "use":
		if len(args) != 2 {
			return errors.New("usage: fvctl target use <name>")
		}
		if _, ok := profile.Targets[args[1]]; !ok {
			return fmt.Errorf("unknown target %q", args[1])
		}
		profile.Current = args[1]
	case "set":
		fs := flag.NewFlagSet("target set", flag.ContinueOnError)
		token := fs.String("token", "", "admin bearer token")
		if len(args) < 3 {
			return errors.New("usage: fvctl target set <name> <url> [--token <t>]")
		}
		if err := fs.Parse(args[3:]); err != nil {
			return err
		}
		profile.Targets[args[1]] = config.Target{URL: strings.TrimRight(args[2], "/"), Token: *token}
	default:
		return fmt.Errorf("unknown target subcommand %q", args[0])
	}

	if err := config.SaveProfile(path, profile); err != nil {
		return err
	}
	fmt.Printf("Active target: %s\n", profile.Current)
	return nil
}
