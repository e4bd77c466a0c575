package commands

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/discord-auction-bot/internal/auction"
)

// Handlers process Discord interactions.
type Handlers struct {
	svc    *auction.Service
	logger *slog.Logger
	tracer trace.Tracer

	// runCtx bounds the auction drive loop spawned by /auction-start.
	runCtx context.Context
}

// NewHandlers creates new command handlers.
func NewHandlers(svc *auction.Service, logger *slog.Logger, tp trace.TracerProvider) *Handlers {
	return &Handlers{
		svc:    svc,
		logger: logger,
		tracer: tp.Tracer("github.com/jensholdgaard/discord-auction-bot/internal/bot/commands"),
		runCtx: context.Background(),
	}
}

// BindContext sets the context that bounds the auction loop goroutine.
func (h *Handlers) BindContext(ctx context.Context) {
	h.runCtx = ctx
}

// profileOptions are the shared registration fields for captains and
// candidates.
func profileOptions(required bool) []*discordgo.ApplicationCommandOption {
	return []*discordgo.ApplicationCommandOption{
		{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "name",
			Description: "Real name",
			Required:    required,
		},
		{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "nickname",
			Description: "In-game nickname (unique)",
			Required:    required,
		},
		{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "tier",
			Description: "Rank tier",
			Required:    false,
		},
		{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "main-pos",
			Description: "Main position",
			Required:    false,
		},
		{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "sub-pos",
			Description: "Secondary position",
			Required:    false,
		},
		{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "mosts",
			Description: "Up to three signature picks, comma separated",
			Required:    false,
		},
	}
}

// SlashCommands returns the slash command definitions.
func SlashCommands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "captain-register",
			Description: "Register a team captain",
			Options: append([]*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "team",
					Description: "Team name",
					Required:    true,
				},
			}, profileOptions(true)...),
		},
		{
			Name:        "candidate-register",
			Description: "Register an auction candidate",
			Options:     profileOptions(true),
		},
		{
			Name:        "candidate-import",
			Description: "Bulk-register candidates from a CSV file (admin only)",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionAttachment,
					Name:        "file",
					Description: "CSV: name,nickname,tier,main_pos,sub_pos,mosts",
					Required:    true,
				},
			},
		},
		{
			Name:        "link",
			Description: "Link a Discord user to a captain nickname (admin only)",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "Discord user",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "captain",
					Description: "Captain nickname",
					Required:    true,
				},
			},
		},
		{
			Name:        "auction-start",
			Description: "Start the auction in this channel (admin only)",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "points",
					Description: "Starting points per captain",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "teams",
					Description: "Number of teams (default: registered captains)",
					Required:    false,
				},
			},
		},
		{
			Name:        "bid",
			Description: "Bid on the candidate up for auction",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "amount",
					Description: "Bid amount in points",
					Required:    true,
				},
			},
		},
		{
			Name:        "pass",
			Description: "Pass your turn",
		},
		{
			Name:        "no-interest",
			Description: "Sit out the rest of this candidate's auction",
		},
		{
			Name:        "pause",
			Description: "Pause the auction on your turn",
		},
		{
			Name:        "unpause",
			Description: "Release your pause early",
		},
		{
			Name:        "status",
			Description: "Show whose turn it is and the current top bid",
		},
		{
			Name:        "roster",
			Description: "Show a team's roster with prices",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "team",
					Description: "Team name or captain nickname",
					Required:    true,
				},
			},
		},
		{
			Name:        "points",
			Description: "Show a team's remaining points",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "team",
					Description: "Team name",
					Required:    true,
				},
			},
		},
		{
			Name:        "unsold",
			Description: "List candidates still unsold",
		},
		{
			Name:        "order",
			Description: "Show the auction order with statuses",
		},
		{
			Name:        "whois",
			Description: "Look up a participant by name or nickname",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "query",
					Description: "Name or nickname",
					Required:    true,
				},
			},
		},
		{
			Name:        "export",
			Description: "Export the results as a CSV file",
		},
		{
			Name:        "force-unsold",
			Description: "Abort the candidate in progress as unsold (admin only)",
		},
		{
			Name:        "auction-reset",
			Description: "Discard all auction state (admin only)",
		},
	}
}

// InteractionCreate handles incoming slash command interactions.
func (h *Handlers) InteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	name := i.ApplicationCommandData().Name
	ctx, span := h.tracer.Start(context.Background(), "InteractionCreate",
		trace.WithAttributes(attribute.String("command", name)),
	)
	defer span.End()

	if !h.svc.EnsureChannel(i.ChannelID) {
		respond(s, i, "The auction is bound to another channel.")
		return
	}

	switch name {
	case "captain-register":
		h.handleCaptainRegister(ctx, s, i)
	case "candidate-register":
		h.handleCandidateRegister(ctx, s, i)
	case "candidate-import":
		h.handleCandidateImport(ctx, s, i)
	case "link":
		h.handleLink(ctx, s, i)
	case "auction-start":
		h.handleAuctionStart(ctx, s, i)
	case "bid":
		h.handleAction(ctx, s, i, auction.Action{Type: auction.ActionBid, Amount: intOption(i, "amount")})
	case "pass":
		h.handleAction(ctx, s, i, auction.Action{Type: auction.ActionPass})
	case "no-interest":
		h.handleAction(ctx, s, i, auction.Action{Type: auction.ActionNoInterest})
	case "pause":
		h.handlePause(ctx, s, i)
	case "unpause":
		h.handleUnpause(ctx, s, i)
	case "status":
		h.handleStatus(ctx, s, i)
	case "roster":
		h.handleRoster(ctx, s, i)
	case "points":
		h.handlePoints(ctx, s, i)
	case "unsold":
		h.handleUnsold(ctx, s, i)
	case "order":
		h.handleOrder(ctx, s, i)
	case "whois":
		h.handleWhois(ctx, s, i)
	case "export":
		h.handleExport(ctx, s, i)
	case "force-unsold":
		h.handleForceUnsold(ctx, s, i)
	case "auction-reset":
		h.handleReset(ctx, s, i)
	default:
		respond(s, i, "Unknown command")
	}
}

func (h *Handlers) handleCaptainRegister(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := options(i)
	err := h.svc.RegisterCaptain(ctx,
		stringOpt(opts, "team"),
		stringOpt(opts, "name"),
		stringOpt(opts, "nickname"),
		stringOpt(opts, "tier"),
		stringOpt(opts, "main-pos"),
		stringOpt(opts, "sub-pos"),
		splitMosts(stringOpt(opts, "mosts")),
	)
	if err != nil {
		respond(s, i, fmt.Sprintf("Registration failed: %s", err))
		return
	}
	respond(s, i, fmt.Sprintf("Captain **%s** registered for team **%s**.",
		stringOpt(opts, "nickname"), stringOpt(opts, "team")))
}

func (h *Handlers) handleCandidateRegister(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := options(i)
	err := h.svc.RegisterCandidate(ctx,
		stringOpt(opts, "name"),
		stringOpt(opts, "nickname"),
		stringOpt(opts, "tier"),
		stringOpt(opts, "main-pos"),
		stringOpt(opts, "sub-pos"),
		splitMosts(stringOpt(opts, "mosts")),
	)
	if err != nil {
		respond(s, i, fmt.Sprintf("Registration failed: %s", err))
		return
	}
	respond(s, i, fmt.Sprintf("Candidate **%s** registered.", stringOpt(opts, "nickname")))
}

func (h *Handlers) handleCandidateImport(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !isAdmin(i) {
		respond(s, i, "You need the Manage Server permission for that.")
		return
	}

	data := i.ApplicationCommandData()
	var att *discordgo.MessageAttachment
	for _, opt := range data.Options {
		if opt.Name == "file" {
			att = data.Resolved.Attachments[opt.Value.(string)]
		}
	}
	if att == nil {
		respond(s, i, "No file attached.")
		return
	}

	// Downloading and parsing can exceed the 3s interaction window.
	acknowledge(s, i)

	imported, skipped, err := h.importCandidates(ctx, att.URL)
	if err != nil {
		followup(s, i, fmt.Sprintf("Import failed: %s", err))
		return
	}
	msg := fmt.Sprintf("Imported **%d** candidates.", imported)
	if skipped > 0 {
		msg += fmt.Sprintf(" Skipped %d malformed or duplicate rows.", skipped)
	}
	followup(s, i, msg)
}

// importCandidates downloads the CSV at url and registers each row.
// Rows are name,nickname,tier,main_pos,sub_pos,mosts; the first row is
// skipped if it looks like a header.
func (h *Handlers) importCandidates(ctx context.Context, url string) (imported, skipped int, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("building download request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("downloading attachment: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, 0, fmt.Errorf("downloading attachment: HTTP %d", resp.StatusCode)
	}

	r := csv.NewReader(resp.Body)
	r.FieldsPerRecord = -1
	first := true
	for {
		rec, readErr := r.Read()
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			skipped++
			continue
		}
		if first {
			first = false
			if len(rec) > 0 && strings.EqualFold(strings.TrimSpace(rec[0]), "name") {
				continue
			}
		}
		if len(rec) < 2 {
			skipped++
			continue
		}
		row := make([]string, 6)
		copy(row, rec)
		if regErr := h.svc.RegisterCandidate(ctx, row[0], row[1], row[2], row[3], row[4], splitMosts(row[5])); regErr != nil {
			h.logger.WarnContext(ctx, "skipping candidate row",
				slog.String("nickname", row[1]),
				slog.Any("error", regErr),
			)
			skipped++
			continue
		}
		imported++
	}
	return imported, skipped, nil
}

func (h *Handlers) handleLink(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !isAdmin(i) {
		respond(s, i, "You need the Manage Server permission for that.")
		return
	}
	opts := options(i)
	user := opts["user"].UserValue(s)
	captain := stringOpt(opts, "captain")

	if err := h.svc.BindIdentity(ctx, user.ID, captain); err != nil {
		respond(s, i, fmt.Sprintf("Link failed: %s", err))
		return
	}
	respond(s, i, fmt.Sprintf("Linked <@%s> to captain **%s**.", user.ID, captain))
}

func (h *Handlers) handleAuctionStart(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !isAdmin(i) {
		respond(s, i, "You need the Manage Server permission for that.")
		return
	}
	opts := options(i)
	points := intOption(i, "points")
	teams := 0
	if o, ok := opts["teams"]; ok {
		teams = int(o.IntValue())
	}

	if err := h.svc.Start(ctx, i.ChannelID, teams, points); err != nil {
		respond(s, i, fmt.Sprintf("Cannot start: %s", err))
		return
	}
	respond(s, i, fmt.Sprintf("Auction started with **%d** points per captain. Good luck!", points))

	go func() {
		if err := h.svc.Run(h.runCtx); err != nil && !errors.Is(err, context.Canceled) {
			h.logger.Error("auction loop ended with error", slog.Any("error", err))
		}
	}()
}

func (h *Handlers) handleAction(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, act auction.Action) {
	err := h.svc.SubmitAction(ctx, identityFrom(i), act)
	switch {
	case err == nil:
		switch act.Type {
		case auction.ActionBid:
			respond(s, i, fmt.Sprintf("Bid of **%d** points accepted.", act.Amount))
		case auction.ActionNoInterest:
			respond(s, i, "Noted, you are out for this candidate.")
		default:
			respond(s, i, "Passed.")
		}
	case errors.Is(err, auction.ErrNotYourTurn):
		respond(s, i, "It is not your turn.")
	default:
		respond(s, i, fmt.Sprintf("Rejected: %s", err))
	}
}

func (h *Handlers) handlePause(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	err := h.svc.RequestPause(ctx, identityFrom(i))
	switch {
	case err == nil:
		respond(s, i, "Auction paused.")
	case errors.Is(err, auction.ErrQuotaExhausted):
		respond(s, i, "You have no pauses left.")
	case errors.Is(err, auction.ErrAlreadyLocked):
		respond(s, i, "The auction is already paused.")
	default:
		respond(s, i, fmt.Sprintf("Cannot pause: %s", err))
	}
}

func (h *Handlers) handleUnpause(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	if err := h.svc.ReleasePause(ctx, identityFrom(i)); err != nil {
		respond(s, i, fmt.Sprintf("Cannot unpause: %s", err))
		return
	}
	respond(s, i, "Pause released.")
}

func (h *Handlers) handleStatus(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !h.svc.Started() {
		respond(s, i, "No auction is running.")
		return
	}
	turn, ok := h.svc.CurrentTurn()
	if !ok {
		respond(s, i, "The auction is between turns.")
		return
	}
	msg := fmt.Sprintf("Candidate **%s** — turn: **%s** (%d points left).",
		turn.CandidateNick, turn.CaptainNick, turn.Remaining)
	if turn.TopBidder != "" {
		msg += fmt.Sprintf(" Top bid: **%d** by **%s**.", turn.TopBid, turn.TopBidder)
	} else {
		msg += fmt.Sprintf(" No bids yet, minimum **%d**.", turn.MinBid)
	}
	respond(s, i, msg)
}

func (h *Handlers) handleRoster(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	team := stringOpt(options(i), "team")
	entries, ok := h.svc.TeamRoster(team)
	if !ok {
		respond(s, i, fmt.Sprintf("No team named **%s**.", team))
		return
	}
	if len(entries) == 0 {
		respond(s, i, fmt.Sprintf("**%s** has not recruited anyone yet.", team))
		return
	}
	msg := fmt.Sprintf("**%s** roster:\n", team)
	for idx, e := range entries {
		msg += fmt.Sprintf("%d. %s (%s) — %d points\n", idx+1, e.Nick, e.Name, e.Price)
	}
	respond(s, i, msg)
}

func (h *Handlers) handlePoints(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	team := stringOpt(options(i), "team")
	info, ok := h.svc.TeamPoints(team)
	if !ok {
		respond(s, i, fmt.Sprintf("No team named **%s**.", team))
		return
	}
	respond(s, i, fmt.Sprintf("**%s** (captain %s): **%d** points remaining (%d spent of %d).",
		info.TeamName, info.Nick, info.RemainPts, info.UsedPts, info.TotalPts))
}

func (h *Handlers) handleUnsold(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	unsold := h.svc.UnsoldCandidates()
	if len(unsold) == 0 {
		respond(s, i, "No unsold candidates.")
		return
	}
	msg := "**Unsold candidates:**\n"
	for _, c := range unsold {
		msg += fmt.Sprintf("- %s (%s)\n", c.Nick, c.Name)
	}
	respond(s, i, msg)
}

func (h *Handlers) handleOrder(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	order := h.svc.AuctionOrder()
	if len(order) == 0 {
		respond(s, i, "The auction order is drawn when the auction starts.")
		return
	}
	msg := "**Auction order:**\n"
	for idx, c := range order {
		line := fmt.Sprintf("%d. %s", idx+1, c.Nick)
		switch c.Status {
		case auction.StatusSold:
			line += fmt.Sprintf(" — sold to %s for %d", c.WonTeam, c.WonPrice)
		case auction.StatusUnsold:
			line += " — unsold"
		case auction.StatusInProgress:
			line += " — up now"
		}
		msg += line + "\n"
	}
	respond(s, i, msg)
}

func (h *Handlers) handleWhois(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	query := stringOpt(options(i), "query")
	candidates, captains := h.svc.FindParticipants(query)
	if len(candidates) == 0 && len(captains) == 0 {
		respond(s, i, fmt.Sprintf("Nobody matches **%s**.", query))
		return
	}
	var b strings.Builder
	for _, c := range candidates {
		fmt.Fprintf(&b, "Candidate **%s** (%s)", c.Nick, c.Name)
		if c.Tier != "" {
			fmt.Fprintf(&b, ", tier %s", c.Tier)
		}
		if c.MainPos != "" {
			fmt.Fprintf(&b, ", %s", c.MainPos)
		}
		if len(c.Mosts) > 0 {
			fmt.Fprintf(&b, " — mosts: %s", strings.Join(c.Mosts, ", "))
		}
		if c.Status == auction.StatusSold {
			fmt.Fprintf(&b, " [sold to %s for %d]", c.WonTeam, c.WonPrice)
		}
		b.WriteString("\n")
	}
	for _, c := range captains {
		fmt.Fprintf(&b, "Captain **%s** (%s), team **%s**, %d points remaining\n",
			c.Nick, c.RealName, c.TeamName, c.RemainPts)
	}
	respond(s, i, b.String())
}

func (h *Handlers) handleExport(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	var buf bytes.Buffer
	if err := h.svc.WriteCSV(&buf); err != nil {
		respond(s, i, fmt.Sprintf("Export failed: %s", err))
		return
	}
	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: "Auction results:",
			Files: []*discordgo.File{
				{
					Name:        "auction-results.csv",
					ContentType: "text/csv",
					Reader:      &buf,
				},
			},
		},
	})
}

func (h *Handlers) handleForceUnsold(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !isAdmin(i) {
		respond(s, i, "You need the Manage Server permission for that.")
		return
	}
	if err := h.svc.ForceUnsold(ctx); err != nil {
		respond(s, i, fmt.Sprintf("Nothing to abort: %s", err))
		return
	}
	respond(s, i, "Candidate aborted as unsold.")
}

func (h *Handlers) handleReset(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !isAdmin(i) {
		respond(s, i, "You need the Manage Server permission for that.")
		return
	}
	h.svc.Reset(ctx)
	respond(s, i, "All auction state discarded.")
}

// identityFrom extracts the acting user's identity from the interaction.
func identityFrom(i *discordgo.InteractionCreate) auction.Identity {
	id := auction.Identity{}
	if i.Member != nil && i.Member.User != nil {
		id.UserID = i.Member.User.ID
		id.Username = i.Member.User.Username
		id.DisplayName = i.Member.Nick
		if id.DisplayName == "" {
			id.DisplayName = i.Member.User.GlobalName
		}
	} else if i.User != nil {
		id.UserID = i.User.ID
		id.Username = i.User.Username
		id.DisplayName = i.User.GlobalName
	}
	return id
}

func isAdmin(i *discordgo.InteractionCreate) bool {
	return i.Member != nil && i.Member.Permissions&discordgo.PermissionManageServer != 0
}

func options(i *discordgo.InteractionCreate) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	out := make(map[string]*discordgo.ApplicationCommandInteractionDataOption)
	for _, opt := range i.ApplicationCommandData().Options {
		out[opt.Name] = opt
	}
	return out
}

func stringOpt(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	if o, ok := opts[name]; ok {
		return o.StringValue()
	}
	return ""
}

func intOption(i *discordgo.InteractionCreate, name string) int {
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == name {
			return int(opt.IntValue())
		}
	}
	return 0
}

// splitMosts parses a comma separated mosts field.
func splitMosts(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

func respond(s *discordgo.Session, i *discordgo.InteractionCreate, msg string) {
	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: msg,
		},
	})
}

// acknowledge defers the interaction response so a followup can arrive later.
func acknowledge(s *discordgo.Session, i *discordgo.InteractionCreate) {
	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
}

func followup(s *discordgo.Session, i *discordgo.InteractionCreate, msg string) {
	_, _ = s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Content: msg,
	})
}
