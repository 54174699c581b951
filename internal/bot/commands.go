package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/toprakhenaz/sword-combat/internal/domain"
	"github.com/toprakhenaz/sword-combat/internal/service"
	"github.com/toprakhenaz/sword-combat/internal/store"
)

// EvictFunc drops a player's live session after an operator change.
type EvictFunc func(ctx context.Context, userID int64)

// Commands executes operator commands against the admin service. It is
// transport-free so the Telegram loop stays thin.
type Commands struct {
	admin *service.AdminService
	evict EvictFunc
}

func NewCommands(admin *service.AdminService, evict EvictFunc) *Commands {
	if evict == nil {
		evict = func(context.Context, int64) {}
	}
	return &Commands{admin: admin, evict: evict}
}

// Execute runs one command on behalf of actorID and returns an HTML reply.
func (c *Commands) Execute(ctx context.Context, actorID int64, command, args string) string {
	args = strings.TrimSpace(args)
	switch command {
	case "start", "help":
		return helpMessage
	case "stats":
		return c.stats(ctx)
	case "user":
		return c.user(ctx, args)
	case "ban":
		return c.setBanned(ctx, actorID, args, true)
	case "unban":
		return c.setBanned(ctx, actorID, args, false)
	case "setcoins":
		return c.coins(ctx, actorID, args, true)
	case "addcoins":
		return c.coins(ctx, actorID, args, false)
	case "top":
		return c.top(ctx, args)
	case "resetdaily":
		return c.resetDaily(ctx, actorID)
	default:
		return "❓ Unknown command. Send /help for the list."
	}
}

const helpMessage = `<b>🗡 Sword Combat admin</b>

<b>📊 Stats</b>
/stats - platform totals
/top [league] - richest players of a league

<b>👤 Players</b>
/user &lt;@username|tg_id&gt; - player card
/ban &lt;@username|tg_id&gt; - ban
/unban &lt;@username|tg_id&gt; - unban
/setcoins &lt;@username|tg_id&gt; &lt;amount&gt; - set balance
/addcoins &lt;@username|tg_id&gt; &lt;amount&gt; - adjust balance

<b>⚙️ Maintenance</b>
/resetdaily - refill daily rockets and full energy`

func failure(err error) string {
	switch {
	case errors.Is(err, service.ErrUserNotFound), errors.Is(err, store.ErrNotFound):
		return "❌ Player not found"
	case errors.Is(err, store.ErrInsufficientFunds):
		return "❌ Balance cannot go below zero"
	}
	var ge *domain.GameError
	if errors.As(err, &ge) {
		return "❌ " + html.EscapeString(ge.Message)
	}
	return "❌ Error: " + html.EscapeString(err.Error())
}

func (c *Commands) stats(ctx context.Context) string {
	s, err := c.admin.GetStats(ctx)
	if err != nil {
		return failure(err)
	}
	return fmt.Sprintf(`<b>📊 Platform stats</b>

• Players: %d
• Banned: %d
• Coins in circulation: %d
• Transactions today: %d
• Items: %d
• Tasks: %d`, s.Players, s.Banned, s.TotalCoins, s.TransactionsToday, s.Items, s.Tasks)
}

func (c *Commands) user(ctx context.Context, args string) string {
	if args == "" {
		return "❌ Usage: /user <@username|tg_id>"
	}
	u, err := c.admin.ResolveUser(ctx, args)
	if err != nil {
		return failure(err)
	}
	status := "active"
	if u.IsBanned {
		status = "banned"
	}
	return fmt.Sprintf(`<b>👤 Player</b>

• ID: %d
• Telegram ID: %d
• Username: @%s
• Name: %s
• 🪙 Coins: %d
• ⚡ Energy: %d/%d
• 👆 Per tap: %d
• ⏱ Per hour: %d
• 🏆 League: %d
• 🔥 Streak: %d
• Status: %s
• Joined: %s`,
		u.ID, u.TgID, html.EscapeString(u.Username), html.EscapeString(u.FirstName),
		u.Coins, u.Energy, u.MaxEnergy, u.EarnPerTap, u.HourlyEarn, u.League, u.DailyStreak,
		status, u.CreatedAt.Format("02.01.2006 15:04"))
}

func (c *Commands) setBanned(ctx context.Context, actorID int64, args string, banned bool) string {
	if args == "" {
		if banned {
			return "❌ Usage: /ban <@username|tg_id>"
		}
		return "❌ Usage: /unban <@username|tg_id>"
	}
	u, err := c.admin.ResolveUser(ctx, args)
	if err != nil {
		return failure(err)
	}
	c.evict(ctx, u.ID)
	if err := c.admin.SetBanned(ctx, actorID, u.ID, banned); err != nil {
		return failure(err)
	}
	if banned {
		return fmt.Sprintf("🚫 Player %d banned", u.TgID)
	}
	return fmt.Sprintf("✅ Player %d unbanned", u.TgID)
}

func (c *Commands) coins(ctx context.Context, actorID int64, args string, set bool) string {
	usage := "❌ Usage: /addcoins <@username|tg_id> <amount>"
	if set {
		usage = "❌ Usage: /setcoins <@username|tg_id> <amount>"
	}
	parts := strings.Fields(args)
	if len(parts) != 2 {
		return usage
	}
	amount, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return usage
	}
	u, err := c.admin.ResolveUser(ctx, parts[0])
	if err != nil {
		return failure(err)
	}

	c.evict(ctx, u.ID)
	balance := amount
	if set {
		err = c.admin.SetCoins(ctx, actorID, u.ID, amount)
	} else {
		balance, err = c.admin.AddCoins(ctx, actorID, u.ID, amount)
	}
	if err != nil {
		return failure(err)
	}
	return fmt.Sprintf("✅ Player %d balance: %d 🪙", u.TgID, balance)
}

func (c *Commands) top(ctx context.Context, args string) string {
	leagueID := 1
	if args != "" {
		n, err := strconv.Atoi(args)
		if err != nil || n <= 0 {
			return "❌ Usage: /top [league]"
		}
		leagueID = n
	}
	rows, err := c.admin.Leaderboard(ctx, leagueID, 10)
	if err != nil {
		return failure(err)
	}
	if len(rows) == 0 {
		return fmt.Sprintf("League %d has no players yet", leagueID)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "<b>🏆 League %d top</b>\n\n", leagueID)
	for _, r := range rows {
		name := r.Username
		if name == "" {
			name = fmt.Sprintf("id:%d", r.UserID)
		}
		fmt.Fprintf(&sb, "%d. %s | 🪙%d\n", r.Rank, html.EscapeString(name), r.Coins)
	}
	return sb.String()
}

func (c *Commands) resetDaily(ctx context.Context, actorID int64) string {
	n, err := c.admin.ResetDaily(ctx, actorID)
	if err != nil {
		return failure(err)
	}
	return fmt.Sprintf("✅ Daily boosts reset for %d players", n)
}
