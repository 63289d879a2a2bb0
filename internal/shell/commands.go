package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/avoiney/oppy/internal/records"
	"github.com/avoiney/oppy/internal/tql"
	"github.com/avoiney/oppy/internal/vault"
	apperrors "github.com/avoiney/oppy/pkg/errors"
	"github.com/avoiney/oppy/pkg/logger"
)

const defaultHistory = 20

func (s *Shell) json(v any) Result {
	return JSONResult{Value: v, printer: s.deps.Printer}
}

func (s *Shell) session(ctx context.Context) Result {
	sess, err := s.deps.Catalog.Session(ctx)
	if err != nil {
		return ErrorResult{Err: err}
	}
	return TextResult{Text: sess.Token}
}

func (s *Shell) passthrough(ctx context.Context, run func(context.Context) (string, error)) Result {
	out, err := run(ctx)
	if err != nil {
		return ErrorResult{Err: err}
	}
	return TextResult{Text: strings.TrimRight(out, "\n")}
}

func (s *Shell) refresh(ctx context.Context) Result {
	items, err := s.deps.Catalog.Refresh(ctx)
	if err != nil {
		return ErrorResult{Err: err}
	}
	s.logger.Debug("listing refreshed", "items", items.Len())
	return TextResult{}
}

func (s *Shell) list(ctx context.Context) Result {
	items, err := s.deps.Catalog.Items(ctx, false)
	if err != nil {
		return ErrorResult{Err: err}
	}
	return s.json(items.Records())
}

func (s *Shell) get(ctx context.Context, ref string) Result {
	if ref == "" {
		return ErrorResult{Err: apperrors.New(apperrors.ErrInvalidInput, apperrors.ExitUsage, "an item uuid, title or domain is required")}
	}
	item, err := s.fetchItem(ctx, ref)
	if err != nil {
		return ErrorResult{Err: err}
	}
	return s.json(item)
}

func (s *Shell) fetchItem(ctx context.Context, ref string) (vault.Item, error) {
	sess, err := s.deps.Catalog.Session(ctx)
	if err != nil {
		return vault.Item{}, err
	}
	raw, err := s.deps.Vault.GetItem(ctx, sess, s.deps.Catalog.Profile().Vault, ref)
	if err != nil {
		return vault.Item{}, err
	}
	return vault.Summarize(raw), nil
}

// search runs query and prints the single matching item. With several
// matches the user picks one from a numbered list.
func (s *Shell) search(ctx context.Context, query string) Result {
	if query == "" {
		return TextResult{Text: "A TQL is required"}
	}
	matches, err := s.deps.Catalog.Query(ctx, query)
	if err != nil {
		return ErrorResult{Err: err}
	}

	var chosen records.Record
	switch matches.Len() {
	case 0:
		return TextResult{Text: "No item found"}
	case 1:
		chosen = matches.At(0)
	default:
		recs := matches.Records()
		choices := make([]string, len(recs))
		for i, r := range recs {
			choices[i] = choiceLabel(r)
		}
		idx, err := choose(s.deps.Prompter, s.deps.Out, choices)
		if err != nil {
			return ErrorResult{Err: err}
		}
		if idx < 0 {
			return TextResult{}
		}
		chosen = recs[idx]
	}

	uuid, _ := records.Stringify(chosen["uuid"])
	item, err := s.fetchItem(ctx, uuid)
	if err != nil {
		return ErrorResult{Err: err}
	}
	return s.json(item)
}

// choiceLabel renders a listing record as "<title> :: <url or ->".
func choiceLabel(r records.Record) string {
	title, _ := records.Lookup(r, []string{"overview", "title"})
	url, ok := records.Lookup(r, []string{"overview", "url"})
	t, _ := records.Stringify(title)
	u, _ := records.Stringify(url)
	if !ok || u == "" {
		u = "-"
	}
	return fmt.Sprintf("%s :: %s", t, u)
}

// explain prints the parsed form of query and the anchored pattern of every
// leaf.
func (s *Shell) explain(query string) Result {
	q, err := s.deps.Catalog.Compile(query)
	if err != nil {
		return ErrorResult{Err: err}
	}
	return TextResult{Text: Explain(q)}
}

// Explain renders q one line for the whole query and one per leaf.
func Explain(q *tql.Query) string {
	if q.Expr == nil {
		return "(empty query: every item matches)"
	}
	e := &explainer{}
	e.b.WriteString(q.String())
	q.Expr.Accept(e)
	return e.b.String()
}

// explainer writes one line per leaf, left to right.
type explainer struct {
	b strings.Builder
}

func (e *explainer) VisitFilter(f *tql.Filter) {
	fmt.Fprintf(&e.b, "\n  %s  %s", f.Field(), f.Pattern)
}

func (e *explainer) VisitFuzzy(f *tql.Fuzzy) {
	fmt.Fprintf(&e.b, "\n  *  %s (any value, case-insensitive)", f.Pattern)
}

func (e *explainer) VisitUnion(u *tql.Union) {
	u.Left.Accept(e)
	u.Right.Accept(e)
}

func (e *explainer) VisitIntersection(i *tql.Intersection) {
	i.Left.Accept(e)
	i.Right.Accept(e)
}

func (s *Shell) setVault(name string) Result {
	switch name {
	case "null", "None", "":
		name = ""
	}
	s.deps.Catalog.SetVault(name)
	s.logger.Debug("vault switched", "vault", name)
	return TextResult{}
}

// setDebug ignores values it does not recognise.
func (s *Shell) setDebug(value string) Result {
	switch strings.ToLower(value) {
	case "yes", "y", "true", "1":
		logger.SetDebug(true)
	case "no", "n", "false", "f", "0":
		logger.SetDebug(false)
	}
	return TextResult{}
}

func (s *Shell) getConf() Result {
	p := s.deps.Catalog.Profile()
	var vaultName any
	if p.Vault != "" {
		vaultName = p.Vault
	}
	return s.json(map[string]any{
		"domain": p.Domain,
		"vault":  vaultName,
		"debug":  logger.DebugEnabled(),
	})
}

func (s *Shell) history(ctx context.Context, arg string) Result {
	if s.deps.History == nil {
		return ErrorResult{Err: apperrors.New(apperrors.ErrUnavailable, apperrors.ExitUnavailable, "query history needs the postgres audit store")}
	}
	limit := defaultHistory
	if arg != "" {
		n, err := strconv.Atoi(arg)
		if err != nil || n <= 0 {
			return ErrorResult{Err: apperrors.Newf(apperrors.ErrInvalidInput, apperrors.ExitUsage, "invalid history size %q", arg)}
		}
		limit = n
	}
	events, err := s.deps.History.Recent(ctx, s.deps.Catalog.Profile().Name, limit)
	if err != nil {
		return ErrorResult{Err: err}
	}
	lines := make([]string, 0, len(events))
	for _, e := range events {
		status := strconv.Itoa(e.Matches) + " matches"
		if e.Failed() {
			status = "error: " + e.Error
		}
		lines = append(lines, fmt.Sprintf("%s  %-40s %s", e.Timestamp.Format("2006-01-02 15:04:05"), e.Query, status))
	}
	return TextResult{Text: strings.Join(lines, "\n")}
}

func (s *Shell) stats() Result {
	if s.deps.Stats == nil {
		return ErrorResult{Err: errors.New("query statistics are disabled")}
	}
	return s.json(s.deps.Stats.Stats())
}

var commandHelp = [][2]string{
	{"login", "log in to the account of the profile"},
	{"session", "print the current session token"},
	{"version", "print the op version"},
	{"update", "check for op updates"},
	{"refresh", "fetch the item listing again"},
	{"list", "print every item of the listing"},
	{"get <ref>", "print one item by uuid, title or domain"},
	{"search <tql>", "find items matching a TQL query"},
	{"explain <tql>", "show how a TQL query is parsed"},
	{"setvault <name|null>", "switch vault, null for every vault"},
	{"setdebug <bool>", "toggle debug logging"},
	{"getconf", "print the current profile settings"},
	{"history [n]", "print the last n queries"},
	{"stats", "print query statistics"},
	{"bye", "leave the shell"},
}

type helpResult struct{}

func (helpResult) Print(w io.Writer) {
	fmt.Fprintln(w, "Commands:")
	for _, h := range commandHelp {
		fmt.Fprintf(w, "  %-22s %s\n", h[0], h[1])
	}
}

func (helpResult) IsExit() bool {
	return false
}
