package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"

	"github.com/Israelshecktar/IMS/internal/alerts"
	"github.com/Israelshecktar/IMS/internal/authz"
	"github.com/Israelshecktar/IMS/internal/domain/materials"
	"github.com/Israelshecktar/IMS/internal/domain/users"
	"github.com/Israelshecktar/IMS/internal/infra/report"
	"github.com/Israelshecktar/IMS/internal/ledger"
)

// Reply is what a command sends back: text, an optional xlsx document, or both.
type Reply struct {
	Text     string
	Document *alerts.Attachment
	Caption  string
	Keyboard *tgbotapi.ReplyKeyboardMarkup
}

type command struct {
	op    authz.Operation
	usage string
	run   func(ctx context.Context, args string) (Reply, error)
}

func (b *Bot) commands() map[string]command {
	return map[string]command{
		"stock":    {authz.OpRead, "/stock CODE", b.cmdStock},
		"list":     {authz.OpRead, "/list [PAGE] [TEXT]", b.cmdList},
		"history":  {authz.OpRead, "/history CODE", b.cmdHistory},
		"take":     {authz.OpWithdraw, "/take CODE QTY", b.cmdTake},
		"add":      {authz.OpAdd, "/add CODE | NAME | QTY | RECEIVED | BEST_BEFORE | LOCATION [| CATEGORY]", b.cmdAdd},
		"update":   {authz.OpUpdate, "/update ID | field=value | ...", b.cmdUpdate},
		"delete":   {authz.OpDelete, "/delete ID", b.cmdDelete},
		"low":      {authz.OpReport, "/low [THRESHOLD]", b.cmdLow},
		"expiring": {authz.OpReport, "/expiring [DAYS]", b.cmdExpiring},
		"levels":   {authz.OpReport, "/levels", b.cmdLevels},
		"taken":    {authz.OpReport, "/taken FROM TO", b.cmdTaken},
		"archive":  {authz.OpReport, "/archive", b.cmdArchive},
		"users":    {authz.OpUsers, "/users", b.cmdUsers},
		"scan":     {authz.OpScan, "/scan", b.cmdScan},
	}
}

// commandOrder fixes the /help listing.
var commandOrder = []string{"stock", "list", "history", "take", "add", "update", "delete", "low", "expiring", "levels", "taken", "archive", "users", "scan"}

// Handle authorizes and executes one command for u.
func (b *Bot) Handle(ctx context.Context, u users.User, name, args string) Reply {
	cmds := b.commands()
	if name == "start" || name == "help" {
		return Reply{Text: b.help(u, cmds), Keyboard: replyKeyboard(u.Role)}
	}
	cmd, ok := cmds[name]
	if !ok {
		return Reply{Text: "Unknown command. Send /help for the list."}
	}
	if err := b.policy.Authorize(u.Role, cmd.op); err != nil {
		b.log.Warn("command denied", "cmd", name, "tg_id", u.TelegramID, "role", string(u.Role))
		return Reply{Text: "You are not allowed to use /" + name + "."}
	}

	r, err := cmd.run(ctx, strings.TrimSpace(args))
	if err != nil {
		if errors.Is(err, errUsage) {
			return Reply{Text: "Usage: " + cmd.usage}
		}
		return Reply{Text: b.explain(name, err)}
	}
	return r
}

var errUsage = errors.New("usage")

func (b *Bot) help(u users.User, cmds map[string]command) string {
	if u.Role == users.RoleNone {
		return fmt.Sprintf("Your Telegram id %d is not registered. Ask an administrator for access.", u.TelegramID)
	}
	var sb strings.Builder
	sb.WriteString("Stock ledger commands:\n")
	for _, name := range commandOrder {
		c := cmds[name]
		if b.policy.Authorize(u.Role, c.op) != nil {
			continue
		}
		sb.WriteString("\n" + c.usage)
	}
	return sb.String()
}

func (b *Bot) explain(name string, err error) string {
	msg := strings.TrimPrefix(err.Error(), "ledger: ")
	switch {
	case errors.Is(err, ledger.ErrInvalidInput):
		return "Invalid input: " + strings.TrimPrefix(msg, "invalid input: ")
	case errors.Is(err, ledger.ErrNotFound):
		return "Material not found."
	case errors.Is(err, ledger.ErrInsufficientStock):
		return "Not enough stock: " + strings.TrimPrefix(msg, "insufficient stock: ")
	case errors.Is(err, ledger.ErrDuplicateKey):
		return "Another material already uses that code."
	case errors.Is(err, ledger.ErrHasDependentTransactions):
		return "This material has withdrawal history and cannot be deleted."
	case errors.Is(err, alerts.ErrSkipped):
		return "An alert scan is already running."
	}
	b.log.Error("command failed", "cmd", name, "err", err)
	return "Something went wrong, please try again later."
}

func (b *Bot) cmdStock(ctx context.Context, args string) (Reply, error) {
	if args == "" {
		return Reply{}, errUsage
	}
	m, err := b.ledger.GetByCode(ctx, args)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: formatMaterial(*m)}, nil
}

func (b *Bot) cmdList(ctx context.Context, args string) (Reply, error) {
	f := materials.Filter{Page: 1}
	if first, rest, _ := strings.Cut(args, " "); first != "" {
		if p, err := strconv.Atoi(first); err == nil {
			if p < 1 || p > materials.MaxPage {
				return Reply{}, errUsage
			}
			f.Page = p
			args = strings.TrimSpace(rest)
		}
	}
	f.ProductName = args

	ms, total, err := b.ledger.List(ctx, f)
	if err != nil {
		return Reply{}, err
	}
	if total == 0 {
		return Reply{Text: "No materials found."}, nil
	}
	f = f.Normalize()
	pages := (total + f.PerPage - 1) / f.PerPage
	var sb strings.Builder
	fmt.Fprintf(&sb, "Materials, page %d of %d (%d total):\n", f.Page, pages, total)
	for _, m := range ms {
		fmt.Fprintf(&sb, "\n#%d %s %s: %s L @ %s", m.ID, m.Code, m.ProductName, m.Quantity.StringFixed(2), m.Location)
	}
	return Reply{Text: sb.String()}, nil
}

func (b *Bot) cmdHistory(ctx context.Context, args string) (Reply, error) {
	if args == "" {
		return Reply{}, errUsage
	}
	m, err := b.ledger.GetByCode(ctx, args)
	if err != nil {
		return Reply{}, err
	}
	ts, err := b.ledger.History(ctx, m.ID)
	if err != nil {
		return Reply{}, err
	}
	if len(ts) == 0 {
		return Reply{Text: fmt.Sprintf("No withdrawals recorded for %s.", m.Code)}, nil
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Withdrawals of %s:\n", m.Code)
	for _, t := range ts {
		fmt.Fprintf(&sb, "\n%s  %s L", t.TakenAt.Format("2006-01-02 15:04"), t.QuantityTaken.StringFixed(2))
	}
	return Reply{Text: sb.String()}, nil
}

func (b *Bot) cmdTake(ctx context.Context, args string) (Reply, error) {
	f := strings.Fields(args)
	if len(f) != 2 {
		return Reply{}, errUsage
	}
	qty, err := ledger.ParseQuantity(f[1])
	if err != nil {
		return Reply{}, err
	}
	left, err := b.ledger.Withdraw(ctx, f[0], qty)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: fmt.Sprintf("Took %s L of %s. Remaining: %s L.", qty.StringFixed(2), f[0], left.StringFixed(2))}, nil
}

func (b *Bot) cmdAdd(ctx context.Context, args string) (Reply, error) {
	p := splitPipes(args)
	if len(p) != 6 && len(p) != 7 {
		return Reply{}, errUsage
	}
	qty, err := ledger.ParseQuantity(p[2])
	if err != nil {
		return Reply{}, err
	}
	received, err := ledger.ParseDate(p[3])
	if err != nil {
		return Reply{}, err
	}
	bestBefore, err := ledger.ParseDate(p[4])
	if err != nil {
		return Reply{}, err
	}
	in := ledger.AddInput{
		Code:           p[0],
		ProductName:    p[1],
		Quantity:       qty,
		ReceivedDate:   received,
		BestBeforeDate: bestBefore,
		Location:       p[5],
	}
	if len(p) == 7 {
		in.Category = p[6]
	}
	m, err := b.ledger.AddOrMerge(ctx, in)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: "Stock recorded.\n\n" + formatMaterial(*m)}, nil
}

func (b *Bot) cmdUpdate(ctx context.Context, args string) (Reply, error) {
	p := splitPipes(args)
	if len(p) < 2 {
		return Reply{}, errUsage
	}
	id, err := strconv.ParseInt(p[0], 10, 64)
	if err != nil {
		return Reply{}, errUsage
	}
	in, err := parseUpdate(p[1:])
	if err != nil {
		return Reply{}, err
	}
	m, err := b.ledger.Update(ctx, id, in)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: "Material updated.\n\n" + formatMaterial(*m)}, nil
}

// parseUpdate reads key=value pairs. Keys: code, name, qty, received,
// best_before, location, category.
func parseUpdate(pairs []string) (ledger.UpdateInput, error) {
	var in ledger.UpdateInput
	for _, kv := range pairs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return in, fmt.Errorf("%w: expected field=value, got %q", ledger.ErrInvalidInput, kv)
		}
		v = strings.TrimSpace(v)
		switch strings.ToLower(strings.TrimSpace(k)) {
		case "code":
			in.Code = &v
		case "name", "product_name":
			in.ProductName = &v
		case "qty", "quantity":
			q, err := ledger.ParseQuantity(v)
			if err != nil {
				return in, err
			}
			in.Quantity = &q
		case "received", "received_date":
			d, err := ledger.ParseDate(v)
			if err != nil {
				return in, err
			}
			in.ReceivedDate = &d
		case "best_before", "best_before_date":
			d, err := ledger.ParseDate(v)
			if err != nil {
				return in, err
			}
			in.BestBeforeDate = &d
		case "location":
			in.Location = &v
		case "category":
			in.Category = &v
		default:
			return in, fmt.Errorf("%w: unknown field %q", ledger.ErrInvalidInput, k)
		}
	}
	return in, nil
}

func (b *Bot) cmdDelete(ctx context.Context, args string) (Reply, error) {
	id, err := strconv.ParseInt(args, 10, 64)
	if err != nil {
		return Reply{}, errUsage
	}
	a, err := b.ledger.Delete(ctx, id)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: fmt.Sprintf("Material %s (#%d) archived as #%d.", a.Code, a.OriginalID, a.ID)}, nil
}

func (b *Bot) cmdLow(ctx context.Context, args string) (Reply, error) {
	threshold := b.threshold
	if args != "" {
		t, err := ledger.ParseQuantity(args)
		if err != nil {
			return Reply{}, err
		}
		threshold = t
	}
	ms, err := b.ledger.BelowThreshold(ctx, threshold)
	if err != nil {
		return Reply{}, err
	}
	if len(ms) == 0 {
		return Reply{Text: fmt.Sprintf("No materials at or below %s L.", threshold.String())}, nil
	}
	return b.materialsReport("Low Stock", "low_stock",
		fmt.Sprintf("%d material(s) at or below %s L.", len(ms), threshold.String()), ms)
}

func (b *Bot) cmdExpiring(ctx context.Context, args string) (Reply, error) {
	days := b.expiryDays
	if args != "" {
		d, err := strconv.Atoi(args)
		if err != nil || d <= 0 {
			return Reply{}, errUsage
		}
		days = d
	}
	cutoff := b.now().AddDate(0, 0, days)
	ms, err := b.ledger.ExpiringBefore(ctx, cutoff)
	if err != nil {
		return Reply{}, err
	}
	if len(ms) == 0 {
		return Reply{Text: fmt.Sprintf("Nothing expires on or before %s.", cutoff.Format(materials.DateLayout))}, nil
	}
	return b.materialsReport("Expiring Soon", "expiring",
		fmt.Sprintf("%d material(s) expire on or before %s.", len(ms), cutoff.Format(materials.DateLayout)), ms)
}

func (b *Bot) cmdLevels(ctx context.Context, _ string) (Reply, error) {
	var all []materials.Material
	for page := 1; ; page++ {
		ms, total, err := b.ledger.List(ctx, materials.Filter{Page: page, PerPage: materials.MaxPerPage})
		if err != nil {
			return Reply{}, err
		}
		all = append(all, ms...)
		if len(ms) == 0 || len(all) >= total {
			break
		}
	}
	if len(all) == 0 {
		return Reply{Text: "The ledger is empty."}, nil
	}
	return b.materialsReport("Inventory Levels", "inventory_levels",
		fmt.Sprintf("Inventory levels, %d material(s).", len(all)), all)
}

func (b *Bot) cmdTaken(ctx context.Context, args string) (Reply, error) {
	f := strings.Fields(args)
	if len(f) != 2 {
		return Reply{}, errUsage
	}
	from, err := ledger.ParseDateIn(f[0], b.loc)
	if err != nil {
		return Reply{}, err
	}
	to, err := ledger.ParseDateIn(f[1], b.loc)
	if err != nil {
		return Reply{}, err
	}
	// TO is a whole calendar day
	end := to.AddDate(0, 0, 1).Add(-time.Nanosecond)
	ts, err := b.ledger.TakenBetween(ctx, from, end)
	if err != nil {
		return Reply{}, err
	}
	if len(ts) == 0 {
		return Reply{Text: fmt.Sprintf("No withdrawals between %s and %s.", f[0], f[1])}, nil
	}
	total := decimal.Zero
	for _, t := range ts {
		total = total.Add(t.QuantityTaken)
	}
	data, err := b.reports.Build("Inventory Taken", report.TakenHeader, report.TakenRows(ts))
	if err != nil {
		return Reply{}, fmt.Errorf("build taken report: %w", err)
	}
	caption := fmt.Sprintf("%d withdrawal(s), %s L in total.", len(ts), total.StringFixed(2))
	return Reply{
		Text:     caption,
		Document: &alerts.Attachment{Name: b.fileName("inventory_taken"), Data: data},
		Caption:  fmt.Sprintf("Withdrawals %s to %s", f[0], f[1]),
	}, nil
}

func (b *Bot) cmdArchive(ctx context.Context, _ string) (Reply, error) {
	as, err := b.ledger.Archived(ctx)
	if err != nil {
		return Reply{}, err
	}
	if len(as) == 0 {
		return Reply{Text: "The archive is empty."}, nil
	}
	data, err := b.reports.Build("Archived Materials", report.ArchiveHeader, report.ArchiveRows(as))
	if err != nil {
		return Reply{}, fmt.Errorf("build archive report: %w", err)
	}
	return Reply{
		Text:     fmt.Sprintf("%d archived material(s).", len(as)),
		Document: &alerts.Attachment{Name: b.fileName("archived_materials"), Data: data},
	}, nil
}

func (b *Bot) cmdUsers(_ context.Context, _ string) (Reply, error) {
	us := b.users.List()
	if len(us) == 0 {
		return Reply{Text: "No users are configured."}, nil
	}
	data, err := b.reports.Build("User Activity", report.UserHeader, report.UserRows(us))
	if err != nil {
		return Reply{}, fmt.Errorf("build user report: %w", err)
	}
	return Reply{
		Text:     fmt.Sprintf("%d configured user(s).", len(us)),
		Document: &alerts.Attachment{Name: b.fileName("user_activity"), Data: data},
	}, nil
}

func (b *Bot) cmdScan(ctx context.Context, _ string) (Reply, error) {
	if b.scan == nil {
		return Reply{Text: "Alerts are disabled."}, nil
	}
	res, err := b.scan.Trigger(ctx)
	if err != nil {
		return Reply{}, err
	}
	failed := 0
	for _, d := range res.Deliveries {
		if d.Err != nil {
			failed++
		}
	}
	text := fmt.Sprintf("Scan finished: %d low, %d expiring.", len(res.LowStock), len(res.Expiring))
	if failed > 0 {
		text += fmt.Sprintf(" %d notification(s) failed.", failed)
	}
	return Reply{Text: text}, nil
}

func (b *Bot) materialsReport(sheet, file, text string, ms []materials.Material) (Reply, error) {
	data, err := b.reports.Build(sheet, report.MaterialHeader, report.MaterialRows(ms))
	if err != nil {
		return Reply{}, fmt.Errorf("build %s report: %w", file, err)
	}
	var sb strings.Builder
	sb.WriteString(text)
	for i, m := range ms {
		if i == 20 {
			fmt.Fprintf(&sb, "\n… and %d more in the attached file.", len(ms)-i)
			break
		}
		fmt.Fprintf(&sb, "\n- %s %s: %s L, best before %s", m.Code, m.ProductName,
			m.Quantity.StringFixed(2), m.BestBeforeDate.Format(materials.DateLayout))
	}
	return Reply{
		Text:     sb.String(),
		Document: &alerts.Attachment{Name: b.fileName(file), Data: data},
		Caption:  sheet,
	}, nil
}

func (b *Bot) fileName(prefix string) string {
	return fmt.Sprintf("%s_%s.xlsx", prefix, b.now().Format("20060102_150405"))
}

func splitPipes(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func formatMaterial(m materials.Material) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "#%d %s\n%s\n", m.ID, m.Code, m.ProductName)
	fmt.Fprintf(&sb, "Quantity: %s L\n", m.Quantity.StringFixed(2))
	fmt.Fprintf(&sb, "Received: %s\n", m.ReceivedDate.Format(materials.DateLayout))
	fmt.Fprintf(&sb, "Best before: %s\n", m.BestBeforeDate.Format(materials.DateLayout))
	fmt.Fprintf(&sb, "Location: %s", m.Location)
	if m.Category != "" {
		fmt.Fprintf(&sb, "\nCategory: %s", m.Category)
	}
	return sb.String()
}
