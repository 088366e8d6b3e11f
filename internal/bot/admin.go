package bot

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"ntrli-bot/internal/catalog"
	"ntrli-bot/internal/domain"

	"go.uber.org/zap"
)

const adminMenu = `🔐 **ADMIN CONTROL PANEL**
` + rule + `

📋 **CATALOG MANAGEMENT**
/admin_add_section <title> <emoji> <description>
/admin_add_product <section> <n> <specs> <price> <notes>
/admin_update_product <section> <n> <field> <value>
/admin_delete_product <section> <n>
/admin_view_menu
/admin_insight <section> <n>
/admin_set_hours <text>
/admin_set_delivery <text>
/admin_set_brand <brand|tagline> <text>

🎨 **NFT ECOSYSTEM**
/admin_nft_stats
/admin_generate_nft <section> <n>

🧠 **AI LAYER**
/admin_ai_memory
/admin_ai_reset

👥 **SUBSCRIPTIONS**
/admin_subscribers
/admin_grant <user_id> <standard|advanced> [days]
/admin_notify <tier|all> <message>

📊 **ECOSYSTEM OVERVIEW**
/admin_ecosystem_stats

` + rule + `
Du er kontrollanten. Det hele er synkroniseret.
Better. Faster. Stronger.`

// MaxGrantDays bounds the period /admin_grant accepts
const MaxGrantDays = 3650

func (b *Bot) registerAdmin() {
	b.admin = map[string]Handler{
		"/admin":                 b.handleAdminMenu,
		"/admin_add_section":     b.handleAddSection,
		"/admin_add_product":     b.handleAddProduct,
		"/admin_update_product":  b.handleUpdateProduct,
		"/admin_delete_product":  b.handleDeleteProduct,
		"/admin_view_menu":       b.handleMenu,
		"/admin_insight":         b.handleInsight,
		"/admin_set_hours":       b.handleSetHours,
		"/admin_set_delivery":    b.handleSetDelivery,
		"/admin_set_brand":       b.handleSetBrand,
		"/admin_nft_stats":       b.handleNFTStats,
		"/admin_generate_nft":    b.handleGenerateNFT,
		"/admin_ai_memory":       b.handleAIMemory,
		"/admin_ai_reset":        b.handleAIReset,
		"/admin_subscribers":     b.handleSubscribers,
		"/admin_grant":           b.handleGrant,
		"/admin_notify":          b.handleNotify,
		"/admin_ecosystem_stats": b.handleEcosystemStats,
	}
}

func (b *Bot) handleAdmin(ctx context.Context, cmd *Command) error {
	h, ok := b.admin[cmd.Name]
	if !ok {
		b.reply(ctx, cmd.SenderID, "❓ Unknown command. /admin for menu")
		return nil
	}

	b.logger.Info("Admin command", zap.String("command", cmd.Name), zap.Int64("admin_id", cmd.SenderID))
	return h(ctx, cmd)
}

func (b *Bot) handleAdminMenu(ctx context.Context, cmd *Command) error {
	b.reply(ctx, cmd.SenderID, adminMenu)
	return nil
}

func (b *Bot) handleAddSection(ctx context.Context, cmd *Command) error {
	if len(cmd.Args) < 2 {
		return usage("/admin_add_section <title> <emoji> <description>")
	}

	title, emoji := cmd.Args[0], cmd.Args[1]
	if err := b.deps.Catalog.AddSection(ctx, title, emoji, cmd.Rest(2)); err != nil {
		return err
	}
	b.replyf(ctx, cmd.SenderID, "✅ Section added: %s %s", emoji, title)
	return nil
}

func (b *Bot) handleAddProduct(ctx context.Context, cmd *Command) error {
	if len(cmd.Args) < 4 {
		return usage("/admin_add_product <section> <n> <specs> <price> [notes]")
	}

	section, name, specs, price := cmd.Args[0], cmd.Args[1], cmd.Args[2], cmd.Args[3]
	if err := b.deps.Catalog.AddProduct(ctx, section, name, specs, price, cmd.Rest(4)); err != nil {
		return err
	}
	b.replyf(ctx, cmd.SenderID, "✅ Product added: %s", name)
	return nil
}

func (b *Bot) handleUpdateProduct(ctx context.Context, cmd *Command) error {
	if len(cmd.Args) < 4 {
		return usage("/admin_update_product <section> <n> <field> <value>")
	}

	section, name, field := cmd.Args[0], cmd.Args[1], cmd.Args[2]
	err := b.deps.Catalog.UpdateProduct(ctx, section, name, map[string]string{field: cmd.Rest(3)})
	if err != nil {
		return err
	}
	b.replyf(ctx, cmd.SenderID, "✅ Updated: %s", name)
	return nil
}

func (b *Bot) handleDeleteProduct(ctx context.Context, cmd *Command) error {
	if len(cmd.Args) < 2 {
		return usage("/admin_delete_product <section> <n>")
	}

	name := cmd.Rest(1)
	if err := b.deps.Catalog.DeleteProduct(ctx, cmd.Args[0], name); err != nil {
		return err
	}
	b.replyf(ctx, cmd.SenderID, "✅ Deleted: %s", name)
	return nil
}

func (b *Bot) handleInsight(ctx context.Context, cmd *Command) error {
	if len(cmd.Args) < 2 {
		return usage("/admin_insight <section> <n>")
	}

	product, err := b.findProduct(cmd.Args[0], cmd.Rest(1))
	if err != nil {
		return err
	}

	insight, err := b.deps.Catalog.GenerateProductInsight(ctx, product.Name, product.Specs)
	if err != nil {
		return err
	}
	b.replyf(ctx, cmd.SenderID, "🧠 %s: %s", product.Name, insight)
	return nil
}

func (b *Bot) handleSetHours(ctx context.Context, cmd *Command) error {
	hours := cmd.Rest(0)
	if hours == "" {
		return usage("/admin_set_hours <text>")
	}
	if err := b.deps.Catalog.SetOpeningHours(ctx, hours); err != nil {
		return err
	}
	b.reply(ctx, cmd.SenderID, "✅ Åbningstider opdateret")
	return nil
}

func (b *Bot) handleSetDelivery(ctx context.Context, cmd *Command) error {
	delivery := cmd.Rest(0)
	if delivery == "" {
		return usage("/admin_set_delivery <text>")
	}
	if err := b.deps.Catalog.SetDeliveryInfo(ctx, delivery); err != nil {
		return err
	}
	b.reply(ctx, cmd.SenderID, "✅ Levering opdateret")
	return nil
}

func (b *Bot) handleSetBrand(ctx context.Context, cmd *Command) error {
	if len(cmd.Args) < 2 {
		return usage("/admin_set_brand <brand|tagline> <text>")
	}
	if err := b.deps.Catalog.SetBrandInfo(ctx, cmd.Args[0], cmd.Rest(1)); err != nil {
		return err
	}
	b.replyf(ctx, cmd.SenderID, "✅ %s opdateret", cmd.Args[0])
	return nil
}

func (b *Bot) handleNFTStats(ctx context.Context, cmd *Command) error {
	stats := b.deps.NFTs.Stats()
	linked := len(b.deps.Catalog.NFTCatalog())

	b.replyf(ctx, cmd.SenderID, "🎨 **NFT ECOSYSTEM STATS**\n%s\n\nTotal NFTs Generated: %d\nNFTs with Ownership: %d\nUnique Owners: %d\nUnowned NFTs: %d\nCatalog Links: %d\n\n🎨 All systems active and tracking.",
		rule, stats.Total, stats.Owned, stats.UniqueOwners, stats.Unowned, linked)
	return nil
}

// handleGenerateNFT renders a catalog product onto a fresh canvas through the NFT queue
func (b *Bot) handleGenerateNFT(ctx context.Context, cmd *Command) error {
	if len(cmd.Args) < 2 {
		return usage("/admin_generate_nft <section> <n>")
	}

	product, err := b.findProduct(cmd.Args[0], cmd.Rest(1))
	if err != nil {
		return err
	}

	err = b.enqueueNFT(nftJob{
		senderID: cmd.SenderID,
		product:  product.Name,
		section:  cmd.Args[0],
		specs:    product.Specs,
	})
	if err != nil {
		return err
	}
	b.reply(ctx, cmd.SenderID, "⏳ Generating NFT...")
	return nil
}

func (b *Bot) handleAIMemory(ctx context.Context, cmd *Command) error {
	memory := b.deps.AI.MemorySummary()

	milestones, err := b.deps.AI.Milestones()
	if err != nil {
		b.logger.Warn("Reading milestones failed", zap.Error(err))
	}

	b.replyf(ctx, cmd.SenderID, "🧠 **AI MEMORY & MILESTONES**\n%s\n\nConversation Length: %d\nRecent Exchanges: %d\nMemory Limit: %d\n\nMilestones Recorded: %d\n\nMemory Status: Active & Tracking",
		rule, memory.ConversationLength, len(memory.RecentExchanges), memory.MemoryLimit, len(milestones))
	return nil
}

func (b *Bot) handleAIReset(ctx context.Context, cmd *Command) error {
	b.deps.AI.Reset()
	b.reply(ctx, cmd.SenderID, "🧠 AI memory cleared. Milestones kept.")
	return nil
}

func (b *Bot) handleSubscribers(ctx context.Context, cmd *Command) error {
	count, err := b.deps.Subscriptions.Count(ctx)
	if err != nil {
		return err
	}
	breakdown, err := b.deps.Subscriptions.TierBreakdown(ctx)
	if err != nil {
		return err
	}

	b.replyf(ctx, cmd.SenderID, "👥 **SUBSCRIBERS**\n%s\n\nTotal Active: %d\n\n🌟 Premium Standard: %d\n⭐ Premium Advanced: %d\n\nStatus: All systems synced",
		rule, count, breakdown[domain.TierStandard], breakdown[domain.TierAdvanced])
	return nil
}

func (b *Bot) handleGrant(ctx context.Context, cmd *Command) error {
	const grantUsage = "/admin_grant <user_id> <standard|advanced> [days]"
	if len(cmd.Args) < 2 || len(cmd.Args) > 3 {
		return usage(grantUsage)
	}

	userID, err := strconv.ParseInt(cmd.Args[0], 10, 64)
	if err != nil || userID <= 0 {
		return usage(grantUsage)
	}
	tier, ok := domain.ParseTier(cmd.Args[1])
	if !ok {
		return usage(grantUsage)
	}

	period := b.cfg.RenewalPeriod
	if len(cmd.Args) == 3 {
		days, err := strconv.Atoi(cmd.Args[2])
		if err != nil || days <= 0 || days > MaxGrantDays {
			return usage(grantUsage)
		}
		period = time.Duration(days) * 24 * time.Hour
	}

	sub, err := b.deps.Subscriptions.Subscribe(ctx, userID, tier, period)
	if err != nil {
		return err
	}

	b.replyf(ctx, cmd.SenderID, "✅ %d er nu %s premium til %s", sub.UserID, sub.Tier, sub.RenewsAt.Format("2006-01-02"))
	b.reply(ctx, userID, "✨ Velkommen til NTRLI' Premium. /premium for detaljer")
	return nil
}

// handleNotify queues a message in the outbox of every active subscriber
// of the given tier ("all" for every tier)
func (b *Bot) handleNotify(ctx context.Context, cmd *Command) error {
	const notifyUsage = "/admin_notify <tier|all> <message>"
	if len(cmd.Args) < 2 {
		return usage(notifyUsage)
	}

	var tier domain.Tier
	if cmd.Args[0] != "all" {
		t, ok := domain.ParseTier(cmd.Args[0])
		if !ok {
			return usage(notifyUsage)
		}
		tier = t
	}

	subs, err := b.deps.Subscriptions.ListActive(ctx, tier)
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		b.reply(ctx, cmd.SenderID, "❌ No subscribers found")
		return nil
	}

	b.replyf(ctx, cmd.SenderID, "📢 Sending to %d subscribers...", len(subs))
	message := cmd.Rest(1)
	for _, sub := range subs {
		b.reply(ctx, sub.UserID, message)
	}
	b.reply(ctx, cmd.SenderID, "✅ Message queued")
	return nil
}

func (b *Bot) handleEcosystemStats(ctx context.Context, cmd *Command) error {
	sections, products := b.deps.Catalog.Counts()

	subs, err := b.deps.Subscriptions.Count(ctx)
	if err != nil {
		return err
	}
	breakdown, err := b.deps.Subscriptions.TierBreakdown(ctx)
	if err != nil {
		return err
	}
	nftStats := b.deps.NFTs.Stats()
	memory := b.deps.AI.MemorySummary()

	b.replyf(ctx, cmd.SenderID, `📊 **COMPLETE ECOSYSTEM STATUS**
%s

📋 **CATALOG LAYER**
   Sections: %d
   Products: %d
   Status: Live

👥 **SUBSCRIPTION LAYER**
   Total Active: %d
   Standard: %d
   Advanced: %d
   Status: Live

🎨 **NFT LAYER**
   NFTs Generated: %d
   Unique Owners: %d
   Status: Live

🧠 **AI LAYER**
   Memory Size: %d
   Exchanges: %d
   Status: Live

%s
Better. Faster. Stronger.`,
		rule,
		sections, products,
		subs, breakdown[domain.TierStandard], breakdown[domain.TierAdvanced],
		nftStats.Total, nftStats.UniqueOwners,
		memory.ConversationLength, len(memory.RecentExchanges),
		rule,
	)
	return nil
}

func (b *Bot) findProduct(sectionTitle, productName string) (*domain.Product, error) {
	section, ok := b.deps.Catalog.Section(sectionTitle)
	if !ok {
		return nil, fmt.Errorf("%w: %s", catalog.ErrSectionNotFound, sectionTitle)
	}
	for _, p := range section.Products {
		if p.Name == productName {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", catalog.ErrProductNotFound, productName)
}
