package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ntrli-bot/internal/catalog"
	"ntrli-bot/internal/repository"

	"go.uber.org/zap"
)

const rule = "━━━━━━━━━━━━━━━━━━━━━━━━"

const startMessage = `🌒   N T R L I '   S E L E C T I O N
` + rule + `

**Det her er ikke bare noget du tilvælger, det er noget du genkender.**

📋 /menu - Overblik over menuen
💎 /premium - FÅ NTRLI' PREMIUM
💬 /ask - Spørg AI en ting
🎨 /nft - Generer NFT
🖼 /my_nfts - Dine NFTs
❓ /info - Levering & åbningstider
📞 /contact - Find mig

` + rule

const premiumOffer = `💎 **FÅ NTRLI' PREMIUM**
` + rule + `

🔒 **Premium Standard**
200 kr/måned · 1500 kr/år

✅ Eksklusive tilbud 💰
✅ Early access til weed 🍂
✅ Billigere røg fra dag 1 💵
✅ Forum adgang 🏛
✅ 1500 stjerner / måned

` + rule + `

⭐ **Premium Advanced**
400 kr/måned · 1500 kr/år

✅ Unlimited early access 📛
✅ Eksklusive micro-batches ❤️‍🔥
✅ Extended forum access ⚡️
✅ 3000 stjerner / måned

` + rule + `

📧 PM for subscription detaljer`

const premiumActive = `✨ **DU ER PREMIUM**

Tier: %s
Fornyer om: %d dage

🌀 /pause_sub - Sæt på pause
🌀 /cancel_sub - Opsig når som helst

` + rule + `
Ingen gebyrer. Hurtigt og uden gebyr.`

const infoMessage = `🚚   L E V E R I N G   &   I N F O
` + rule + `

%s

🕜   Å B N I N G S T I D E R
` + rule + `

%s

🛡️ **Fokus på sikkerhed & harm reduction**

Alle produkter udvælges med omtanke.
Intet overflødigt intet tilfældigt.`

const (
	defaultDelivery = "📦 Levering fra 500 kr\n🏠 Selvhent i Lindholm\n📞 Skriv, vi finder ud af det"
	defaultHours    = "Man – Tor · 13:30 – 21:00\nFre – Lør · 15:30 – 01:00\nSøndag · Lukket"
)

const contactMessage = `📞   K O N T A K T
` + rule + `

💬 PM mig: @Sir_NTRLI_II
🔗 Premium: https://t.me/+z7AO7r1c16BiODZk
🔗 Advanced: https://t.me/+gnx2ZsLT-epmY2U0`

func (b *Bot) registerPublic() {
	b.public = map[string]Handler{
		"/start":       b.handleStart,
		"/menu":        b.handleMenu,
		"/ask":         b.handleAsk,
		"/nft":         b.handleNFT,
		"/premium":     b.handlePremium,
		"/info":        b.handleInfo,
		"/contact":     b.handleContact,
		"/pause_sub":   b.handlePauseSub,
		"/resume_sub":  b.handleResumeSub,
		"/cancel_sub":  b.handleCancelSub,
		"/my_nfts":     b.handleMyNFTs,
		"/certificate": b.handleCertificate,
	}
}

func (b *Bot) handleStart(ctx context.Context, cmd *Command) error {
	b.reply(ctx, cmd.SenderID, startMessage)
	return nil
}

func (b *Bot) handleMenu(ctx context.Context, cmd *Command) error {
	b.reply(ctx, cmd.SenderID, b.deps.Catalog.RenderMenu())
	return nil
}

func (b *Bot) handleAsk(ctx context.Context, cmd *Command) error {
	question := cmd.Rest(0)
	if question == "" {
		return usage("/ask dit_spørgsmål")
	}

	if err := b.enqueueAI(cmd.SenderID, question); err != nil {
		return err
	}
	b.reply(ctx, cmd.SenderID, "⏳ AI thinking...")
	return nil
}

// handleNFT converts the image the sender replied to. Optional arguments
// name the section and product the NFT belongs to.
func (b *Bot) handleNFT(ctx context.Context, cmd *Command) error {
	if cmd.ReplyImagePath == "" {
		b.reply(ctx, cmd.SenderID, "Reply to an image with /nft to generate NFT")
		return nil
	}

	section, product := DefaultNFTSection, DefaultNFTProduct
	if len(cmd.Args) >= 1 {
		section = cmd.Args[0]
	}
	if len(cmd.Args) >= 2 {
		product = cmd.Rest(1)
	}

	err := b.enqueueNFT(nftJob{
		senderID:  cmd.SenderID,
		imagePath: cmd.ReplyImagePath,
		product:   product,
		section:   section,
	})
	if err != nil {
		return err
	}
	b.reply(ctx, cmd.SenderID, "⏳ Generating NFT...")
	return nil
}

func (b *Bot) handlePremium(ctx context.Context, cmd *Command) error {
	sub, err := b.deps.Subscriptions.Get(ctx, cmd.SenderID)
	if errors.Is(err, repository.ErrSubscriptionNotFound) {
		b.reply(ctx, cmd.SenderID, premiumOffer)
		return nil
	}
	if err != nil {
		return err
	}

	days, err := b.deps.Subscriptions.RenewalDays(ctx, cmd.SenderID)
	if err != nil {
		return err
	}
	b.replyf(ctx, cmd.SenderID, premiumActive, sub.Tier, days)
	return nil
}

func (b *Bot) handleInfo(ctx context.Context, cmd *Command) error {
	info := b.deps.Catalog.Info()

	delivery := info[catalog.InfoDelivery]
	if delivery == "" {
		delivery = defaultDelivery
	}
	hours := info[catalog.InfoOpeningHours]
	if hours == "" {
		hours = defaultHours
	}

	b.replyf(ctx, cmd.SenderID, infoMessage, delivery, hours)
	return nil
}

func (b *Bot) handleContact(ctx context.Context, cmd *Command) error {
	b.reply(ctx, cmd.SenderID, contactMessage)
	return nil
}

func (b *Bot) handlePauseSub(ctx context.Context, cmd *Command) error {
	err := b.deps.Subscriptions.Pause(ctx, cmd.SenderID)
	switch {
	case errors.Is(err, repository.ErrSubscriptionNotFound):
		b.reply(ctx, cmd.SenderID, "❌ Ingen aktiv subscription")
	case err != nil:
		return err
	default:
		b.reply(ctx, cmd.SenderID, "✅ Subscription sat på pause\n🌀 /resume_sub")
	}
	return nil
}

func (b *Bot) handleResumeSub(ctx context.Context, cmd *Command) error {
	err := b.deps.Subscriptions.Resume(ctx, cmd.SenderID)
	switch {
	case errors.Is(err, repository.ErrSubscriptionNotFound):
		b.reply(ctx, cmd.SenderID, "❌ Ingen paused subscription")
	case err != nil:
		return err
	default:
		b.reply(ctx, cmd.SenderID, "✅ Subscription genoptaget")
	}
	return nil
}

func (b *Bot) handleCancelSub(ctx context.Context, cmd *Command) error {
	err := b.deps.Subscriptions.Cancel(ctx, cmd.SenderID)
	switch {
	case errors.Is(err, repository.ErrSubscriptionNotFound):
		b.reply(ctx, cmd.SenderID, "❌ Ingen aktiv subscription")
	case err != nil:
		return err
	default:
		b.reply(ctx, cmd.SenderID, "✅ Subscription opsagt")
	}
	return nil
}

func (b *Bot) handleMyNFTs(ctx context.Context, cmd *Command) error {
	records := b.deps.NFTs.UserNFTs(cmd.SenderID)
	if len(records) == 0 {
		b.reply(ctx, cmd.SenderID, "🎨 Du har ingen NFTs endnu. Svar på et billede med /nft")
		return nil
	}

	var sb strings.Builder
	sb.WriteString("🎨 **DINE NFTs**\n" + rule + "\n\n")
	for _, r := range records {
		fmt.Fprintf(&sb, "• %s · %s (%s)\n", r.NFTID, r.ProductName, r.SectionName)
	}
	sb.WriteString("\n📜 /certificate <nft_id>")
	b.reply(ctx, cmd.SenderID, sb.String())
	return nil
}

func (b *Bot) handleCertificate(ctx context.Context, cmd *Command) error {
	if len(cmd.Args) != 1 {
		return usage("/certificate <nft_id>")
	}

	cert, err := b.deps.NFTs.Certificate(cmd.Args[0])
	if err != nil {
		return err
	}

	owner := "Unowned"
	if cert.Owner != nil {
		owner = fmt.Sprintf("%d", *cert.Owner)
	}

	b.replyf(ctx, cmd.SenderID, "📜 **NFT CERTIFICATE**\n%s\n\nNFT ID: %s\nProduct: %s\nCategory: %s\nCreated: %s\nOwner: %s\nVerified: ✅\nEcosystem: %s",
		rule,
		cert.NFTID,
		cert.ProductName,
		cert.ProductCategory,
		cert.Created.Format("2006-01-02 15:04:05"),
		owner,
		cert.Ecosystem,
	)
	b.logger.Debug("Certificate exported", zap.String("nft_id", cert.NFTID))
	return nil
}
