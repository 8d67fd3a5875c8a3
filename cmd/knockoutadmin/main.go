package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
	"maze.io/x/duration"

	"github.com/ts4z/knockout/bracket"
	"github.com/ts4z/knockout/config"
	"github.com/ts4z/knockout/dbcache"
	"github.com/ts4z/knockout/dbnotify"
	"github.com/ts4z/knockout/dbutil"
	"github.com/ts4z/knockout/escrow"
	"github.com/ts4z/knockout/fakes"
	"github.com/ts4z/knockout/ick"
	"github.com/ts4z/knockout/model"
	"github.com/ts4z/knockout/registry"
	"github.com/ts4z/knockout/state"
	"github.com/ts4z/knockout/ts"
)

var (
	caller string

	createName    string
	createBanner  string
	createVariant string
	createTeams   []string
	createFee     int64
	createPoints  int64
	createShuffle bool
	startsIn      time.Duration
	expiresIn     time.Duration

	completeMatch  int
	completeWinner int

	advanceResults []int

	// The token ledger lives off-board in production.  The admin tool
	// stands in a fake bank so paid flows can be rehearsed against a real
	// database; --pool-balance is how much the fake thinks the caller
	// already moved into the pool.
	poolBalance int64

	clock = ts.New(clockwork.NewRealClock())
)

// splitKey parses the "owner/id" form used on the command line.
func splitKey(arg string) (model.Address, string, error) {
	owner, id, ok := strings.Cut(arg, "/")
	if !ok || owner == "" || id == "" {
		return "", "", fmt.Errorf("expected owner/id, got %q", arg)
	}
	return model.Address(owner), id, nil
}

func newDirector(ctx context.Context) (*registry.Director, *fakes.FakeBank, func()) {
	db, err := state.NewDBStorage(ctx, config.DBURL())
	if err != nil {
		log.Fatalf("can't connect to database: %v", err)
	}
	storage := dbcache.NewCompetitionStorage(config.CacheSize(), db)

	bank := fakes.NewFakeBank()
	d := registry.New(registry.Options{
		Storage:               storage,
		Clock:                 clock,
		Bank:                  bank,
		Pools:                 escrow.DerivedPools{},
		DefaultPointsPerRound: config.PointsPerRound(),
	})
	return d, bank, func() { storage.Close() }
}

// seedPool credits the fake bank's pool account for owner/id so escrow
// balance checks see --pool-balance.
func seedPool(bank *fakes.FakeBank, owner model.Address, id string) {
	if poolBalance > 0 {
		bank.Deposit(escrow.DerivedPools{}.DeriveAccount(owner, id), poolBalance)
	}
}

func createCompetition(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	owner, id, err := splitKey(args[0])
	if err != nil {
		return err
	}
	if string(owner) != caller {
		return fmt.Errorf("--as %q does not match owner %q", caller, owner)
	}

	var variant model.Variant
	switch createVariant {
	case "bracket":
		variant = model.VariantBracket
	case "predict":
		variant = model.VariantPredictable
	case "paid":
		variant = model.VariantPaidPredictable
	default:
		return fmt.Errorf("unknown variant %q (want bracket, predict, or paid)", createVariant)
	}

	teams := createTeams
	if createShuffle {
		teams = ick.Shuffle(teams)
	}

	now := clock.Now()
	var expiry int64
	if expiresIn > 0 {
		expiry = now.Add(expiresIn).Unix()
	}

	d, _, closer := newDirector(ctx)
	defer closer()

	err = d.CreateCompetition(ctx, owner, registry.CreateParams{
		CreateParams: bracket.CreateParams{
			Owner:           owner,
			ID:              id,
			Name:            createName,
			Banner:          createBanner,
			Variant:         variant,
			NumTeams:        len(teams),
			StartEpoch:      now.Add(startsIn).Unix(),
			ExpirationEpoch: expiry,
			TeamNames:       teams,
			PointsPerRound:  createPoints,
		},
		Fee: createFee,
	})
	if err != nil {
		return fmt.Errorf("creating competition: %w", err)
	}
	fmt.Printf("Created %s with %d teams.\n", model.Key(owner, id), len(teams))
	return nil
}

func listCompetitions(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	d, _, closer := newDirector(ctx)
	defer closer()

	slugs, err := d.Overview(ctx, model.Address(args[0]))
	if err != nil {
		return fmt.Errorf("fetching overview: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintf(w, "id\tname\tvariant\n")
	for _, s := range slugs {
		fmt.Fprintf(w, "%s\t%s\t%s\n", s.ID, s.Name, s.Variant)
	}
	return w.Flush()
}

func showCompetition(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	owner, id, err := splitKey(args[0])
	if err != nil {
		return err
	}

	d, _, closer := newDirector(ctx)
	defer closer()

	c, err := d.Competition(ctx, owner, id)
	if err != nil {
		return err
	}

	fmt.Printf("%s (%s)\n", c.Name, c.Variant)
	switch {
	case c.Finished():
		winner, _ := c.Winner(c.NumTeams - 2)
		fmt.Printf("Finished.  Champion: %s\n", c.TeamNames[winner])
	case c.Live():
		fmt.Printf("Live, round %d of %d.\n", c.CurrentRound(), c.TotalRounds)
	default:
		fmt.Printf("Not started.  Scheduled for %s.\n",
			time.Unix(c.StartingEpoch, 0).Format(time.RFC3339))
	}
	if c.Expired(clock.Now()) {
		fmt.Printf("Expired.\n")
	}

	start, count := c.CurrentWindow()
	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintf(w, "match\twinner\t\n")
	for i := range c.Bracket {
		live := ""
		if c.Live() && i >= start && i < start+count {
			live = "live"
		}
		if winner, done := c.Winner(i); done {
			fmt.Fprintf(w, "%d\t%s\t%s\n", i, c.TeamNames[winner], live)
		} else {
			fmt.Fprintf(w, "%d\t-\t%s\n", i, live)
		}
	}
	return w.Flush()
}

func startCompetition(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	owner, id, err := splitKey(args[0])
	if err != nil {
		return err
	}
	d, _, closer := newDirector(ctx)
	defer closer()
	return d.Start(ctx, model.Address(caller), owner, id)
}

func setTeamNames(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	owner, id, err := splitKey(args[0])
	if err != nil {
		return err
	}
	d, _, closer := newDirector(ctx)
	defer closer()
	return d.SetTeamNames(ctx, model.Address(caller), owner, id, args[1:])
}

func completeOneMatch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	owner, id, err := splitKey(args[0])
	if err != nil {
		return err
	}
	d, _, closer := newDirector(ctx)
	defer closer()
	return d.CompleteMatch(ctx, model.Address(caller), owner, id, completeMatch, completeWinner)
}

func advanceRound(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	owner, id, err := splitKey(args[0])
	if err != nil {
		return err
	}
	d, _, closer := newDirector(ctx)
	defer closer()
	if cmd.Flags().Changed("result") {
		return d.AdvanceRoundWithResults(ctx, model.Address(caller), owner, id, advanceResults)
	}
	return d.AdvanceRound(ctx, model.Address(caller), owner, id)
}

func submitPrediction(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	owner, id, err := splitKey(args[0])
	if err != nil {
		return err
	}
	d, bank, closer := newDirector(ctx)
	defer closer()
	seedPool(bank, owner, id)

	// arguments after owner/id are predicted winners, one per match
	var picks []int
	for _, a := range args[1:] {
		n, err := strconv.Atoi(a)
		if err != nil {
			return fmt.Errorf("bad pick %q: %w", a, err)
		}
		picks = append(picks, n)
	}
	return d.SubmitPrediction(ctx, model.Address(caller), owner, id, picks)
}

func refund(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	owner, id, err := splitKey(args[0])
	if err != nil {
		return err
	}
	d, bank, closer := newDirector(ctx)
	defer closer()
	seedPool(bank, owner, id)
	return d.Refund(ctx, model.Address(caller), owner, id)
}

func claim(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	owner, id, err := splitKey(args[0])
	if err != nil {
		return err
	}
	d, bank, closer := newDirector(ctx)
	defer closer()
	seedPool(bank, owner, id)
	return d.Claim(ctx, model.Address(caller), owner, id)
}

func showScore(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	owner, id, err := splitKey(args[0])
	if err != nil {
		return err
	}
	d, _, closer := newDirector(ctx)
	defer closer()

	user := model.Address(caller)
	if len(args) > 1 {
		user = model.Address(args[1])
	}
	score, err := d.Score(ctx, owner, id, user)
	if err != nil {
		return err
	}
	total, err := d.TotalScore(ctx, owner, id)
	if err != nil {
		return err
	}
	pct, err := d.ScorePercent(ctx, owner, id, user)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d of %d points (%d.%02d%%)\n", user, score, total, pct/100, pct%100)
	return nil
}

func showPending(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	owner, id, err := splitKey(args[0])
	if err != nil {
		return err
	}
	d, _, closer := newDirector(ctx)
	defer closer()

	user := model.Address(caller)
	if len(args) > 1 {
		user = model.Address(args[1])
	}
	pending, err := d.PendingRewards(ctx, owner, id, user)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d pending\n", user, pending)
	return nil
}

// watch tails the database change feed, optionally filtered to one
// competition.  Useful for confirming triggers and cache invalidation
// against a live database.
func watch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	var owner model.Address
	var id string
	if len(args) > 0 {
		var err error
		owner, id, err = splitKey(args[0])
		if err != nil {
			return err
		}
	}

	db, err := dbutil.Connect(config.DBURL())
	if err != nil {
		return err
	}
	defer db.Close()

	printer := dbnotify.ConsumerFunc(func(_ context.Context, ev *dbnotify.NotificationEvent) {
		if id != "" && (ev.Owner != owner || ev.ID != id) {
			return
		}
		fmt.Printf("%s %s version %d\n", time.Now().Format(time.RFC3339), model.Key(ev.Owner, ev.ID), ev.Version)
	})
	return dbnotify.NewListener(db, nil, printer).Listen(ctx)
}

// durationFlag accepts "36h" but also maze.io forms like "2d12h".
func durationFlag(cmd *cobra.Command, name, usage string, into *time.Duration) {
	cmd.Flags().Func(name, usage, func(s string) error {
		d, err := duration.ParseDuration(s)
		if err != nil {
			return err
		}
		*into = time.Duration(d)
		return nil
	})
}

func main() {
	config.Init()

	rootCmd := &cobra.Command{
		Short: "Knockout administration tool",
		Use:   "knockoutadmin",
	}
	rootCmd.PersistentFlags().StringVar(&caller, "as", os.Getenv("USER"), "Address to act as")
	rootCmd.PersistentFlags().Int64Var(&poolBalance, "pool-balance", 0, "Pretend this much already sits in the prize pool (rehearsal only)")

	createCmd := &cobra.Command{
		Use:   "create [owner/id]",
		Short: "Create a competition",
		Args:  cobra.ExactArgs(1),
		RunE:  createCompetition,
	}
	createCmd.Flags().StringVar(&createName, "name", "", "Display name")
	createCmd.Flags().StringVar(&createBanner, "banner", "", "Banner image URL")
	createCmd.Flags().StringVar(&createVariant, "variant", "bracket", "bracket, predict, or paid")
	createCmd.Flags().StringArrayVar(&createTeams, "team", nil, "Team name (repeat; count must be a power of two)")
	createCmd.Flags().Int64Var(&createFee, "fee", 0, "Entry fee for the paid variant")
	createCmd.Flags().Int64Var(&createPoints, "points", 0, "Point budget per round (0 uses the configured default)")
	createCmd.Flags().BoolVar(&createShuffle, "shuffle", false, "Shuffle team seeding")
	durationFlag(createCmd, "starts-in", "How far in the future the bracket opens (e.g. 2d)", &startsIn)
	durationFlag(createCmd, "expires-in", "How long until the competition expires (0 for never)", &expiresIn)

	listCmd := &cobra.Command{
		Use:   "list [owner]",
		Short: "List an owner's competitions",
		Args:  cobra.ExactArgs(1),
		RunE:  listCompetitions,
	}

	showCmd := &cobra.Command{
		Use:   "show [owner/id]",
		Short: "Show a competition's bracket",
		Args:  cobra.ExactArgs(1),
		RunE:  showCompetition,
	}

	startCmd := &cobra.Command{
		Use:   "start [owner/id]",
		Short: "Open the bracket for play",
		Args:  cobra.ExactArgs(1),
		RunE:  startCompetition,
	}

	setNamesCmd := &cobra.Command{
		Use:   "set-names [owner/id] [name...]",
		Short: "Replace the team name table before start",
		Args:  cobra.MinimumNArgs(2),
		RunE:  setTeamNames,
	}

	completeCmd := &cobra.Command{
		Use:   "complete [owner/id]",
		Short: "Record a match result in the current round",
		Args:  cobra.ExactArgs(1),
		RunE:  completeOneMatch,
	}
	completeCmd.Flags().IntVar(&completeMatch, "match", 0, "Match index")
	completeCmd.Flags().IntVar(&completeWinner, "winner", 0, "Winning team index")

	advanceCmd := &cobra.Command{
		Use:   "advance [owner/id]",
		Short: "Close the current round and open the next",
		Args:  cobra.ExactArgs(1),
		RunE:  advanceRound,
	}
	advanceCmd.Flags().IntSliceVar(&advanceResults, "result", nil, "Winner for each match in the round, in order (fills unrecorded matches)")

	predictCmd := &cobra.Command{
		Use:   "predict [owner/id] [winner...]",
		Short: "Submit a predicted bracket",
		Args:  cobra.MinimumNArgs(2),
		RunE:  submitPrediction,
	}

	refundCmd := &cobra.Command{
		Use:   "refund [owner/id]",
		Short: "Refund an entry fee from an expired competition",
		Args:  cobra.ExactArgs(1),
		RunE:  refund,
	}

	claimCmd := &cobra.Command{
		Use:   "claim [owner/id]",
		Short: "Claim winnings from a finished competition",
		Args:  cobra.ExactArgs(1),
		RunE:  claim,
	}

	scoreCmd := &cobra.Command{
		Use:   "score [owner/id] [user]",
		Short: "Show a predictor's score",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  showScore,
	}

	watchCmd := &cobra.Command{
		Use:   "watch [owner/id]",
		Short: "Tail the competition change feed",
		Args:  cobra.MaximumNArgs(1),
		RunE:  watch,
	}

	pendingCmd := &cobra.Command{
		Use:   "pending [owner/id] [user]",
		Short: "Show unclaimed winnings",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  showPending,
	}

	rootCmd.AddCommand(createCmd, listCmd, showCmd, startCmd, setNamesCmd,
		completeCmd, advanceCmd, predictCmd, refundCmd, claimCmd,
		scoreCmd, pendingCmd, watchCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
