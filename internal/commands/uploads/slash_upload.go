// Package uploads holds the file-hosting slash command.
package uploads

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"vckeeper/internal/core"
	"vckeeper/internal/storage"
	"vckeeper/internal/upload"
)

// UploadCommand pushes files to catbox/litterbox and tracks each user's
// uploads.
type UploadCommand struct{}

func (c *UploadCommand) Name() string        { return "upload" }
func (c *UploadCommand) Description() string { return "Host files on catbox.moe or litterbox" }
func (c *UploadCommand) Category() string    { return "📁 Uploads" }

func (c *UploadCommand) SlashDefinition() *discordgo.ApplicationCommand {
	serviceOption := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "service",
		Description: "Hosting service (catbox keeps files forever)",
		Choices: []*discordgo.ApplicationCommandOptionChoice{
			{Name: "catbox (permanent)", Value: upload.ServiceCatbox},
			{Name: "litterbox (temporary)", Value: upload.ServiceLitterbox},
		},
	}
	lifetimeOption := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "lifetime",
		Description: "How long litterbox keeps the file (default 24h)",
		Choices: []*discordgo.ApplicationCommandOptionChoice{
			{Name: "1 hour", Value: "1h"},
			{Name: "12 hours", Value: "12h"},
			{Name: "24 hours", Value: "24h"},
			{Name: "72 hours", Value: "72h"},
		},
	}

	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Type:        discordgo.ChatApplicationCommand,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "file",
				Description: "Upload an attached file",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionAttachment,
						Name:        "attachment",
						Description: "File to host",
						Required:    true,
					},
					serviceOption,
					lifetimeOption,
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "url",
				Description: "Mirror a remote file by URL",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "url",
						Description: "Direct link to the file",
						Required:    true,
					},
					serviceOption,
					lifetimeOption,
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "list",
				Description: "List your uploads",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "delete",
				Description: "Forget one of your uploads",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "url",
						Description: "Hosted URL to remove",
						Required:    true,
					},
				},
			},
		},
	}
}

func (c *UploadCommand) Run(ctx interface{}) error {
	sc, ok := ctx.(*core.SlashContext)
	if !ok {
		return nil
	}

	data := sc.Event.ApplicationCommandData()
	if len(data.Options) == 0 {
		return nil
	}
	sub := data.Options[0]

	switch sub.Name {
	case "file":
		return c.runFile(sc, sub)
	case "url":
		return c.runURL(sc, sub)
	case "list":
		return c.runList(sc)
	case "delete":
		return c.runDelete(sc, sub)
	}
	return nil
}

func subOptions(sub *discordgo.ApplicationCommandInteractionDataOption) (service, lifetime, rawURL string) {
	service = upload.ServiceCatbox
	for _, opt := range sub.Options {
		switch opt.Name {
		case "service":
			service = opt.StringValue()
		case "lifetime":
			lifetime = opt.StringValue()
		case "url":
			rawURL = opt.StringValue()
		}
	}
	return service, lifetime, rawURL
}

func (c *UploadCommand) runFile(sc *core.SlashContext, sub *discordgo.ApplicationCommandInteractionDataOption) error {
	data := sc.Event.ApplicationCommandData()
	service, lifetime, _ := subOptions(sub)

	var attachment *discordgo.MessageAttachment
	for _, opt := range sub.Options {
		if opt.Name == "attachment" {
			attachment = data.Resolved.Attachments[opt.Value.(string)]
		}
	}
	if attachment == nil {
		return core.RespondEphemeral(sc.Session, sc.Event, "📁 An attachment is required.")
	}
	if limit, err := upload.MaxBytes(service); err == nil && int64(attachment.Size) > limit {
		return core.RespondEphemeral(sc.Session, sc.Event,
			fmt.Sprintf("📁 That file is too big for %s (limit %d MB).", service, limit>>20))
	}

	if err := core.Defer(sc.Session, sc.Event); err != nil {
		return fmt.Errorf("deferred response: %w", err)
	}

	uploadCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	local, cleanup, err := sc.Deps.Uploads.FetchToTemp(uploadCtx, attachment.URL, attachment.Filename)
	if err != nil {
		return core.Followup(sc.Session, sc.Event, "📁 Could not read the attachment.")
	}
	defer cleanup()

	hosted, err := sc.Deps.Uploads.UploadFile(uploadCtx, service, local, lifetime)
	if err != nil {
		return core.Followup(sc.Session, sc.Event, uploadErrorText(err))
	}

	c.remember(sc, storage.UploadRecord{
		Service:    service,
		FileName:   attachment.Filename,
		URL:        hosted,
		SizeBytes:  int64(attachment.Size),
		Lifetime:   lifetime,
		UploadedAt: time.Now().UTC(),
	})
	return core.Followup(sc.Session, sc.Event, "📁 Hosted: "+hosted)
}

func (c *UploadCommand) runURL(sc *core.SlashContext, sub *discordgo.ApplicationCommandInteractionDataOption) error {
	service, lifetime, rawURL := subOptions(sub)
	if rawURL == "" {
		return core.RespondEphemeral(sc.Session, sc.Event, "📁 A URL is required.")
	}

	if err := core.Defer(sc.Session, sc.Event); err != nil {
		return fmt.Errorf("deferred response: %w", err)
	}

	uploadCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	var hosted string
	var err error
	if service == upload.ServiceLitterbox {
		// Litterbox has no mirror endpoint, fetch then upload.
		var local string
		var cleanup func()
		local, cleanup, err = sc.Deps.Uploads.FetchToTemp(uploadCtx, rawURL, path.Base(rawURL))
		if err == nil {
			defer cleanup()
			hosted, err = sc.Deps.Uploads.UploadFile(uploadCtx, service, local, lifetime)
		}
	} else {
		hosted, err = sc.Deps.Uploads.UploadFromURL(uploadCtx, service, rawURL)
	}
	if err != nil {
		return core.Followup(sc.Session, sc.Event, uploadErrorText(err))
	}

	c.remember(sc, storage.UploadRecord{
		Service:    service,
		FileName:   path.Base(rawURL),
		URL:        hosted,
		Lifetime:   lifetime,
		UploadedAt: time.Now().UTC(),
	})
	return core.Followup(sc.Session, sc.Event, "📁 Hosted: "+hosted)
}

func (c *UploadCommand) runList(sc *core.SlashContext) error {
	records, err := sc.Deps.Storage.Uploads(core.InteractionUserID(sc.Event))
	if err != nil {
		return core.RespondEphemeral(sc.Session, sc.Event, "📁 Could not load your uploads.")
	}
	if len(records) == 0 {
		return core.RespondEphemeral(sc.Session, sc.Event, "📁 You have no recorded uploads.")
	}

	var b strings.Builder
	for i := len(records) - 1; i >= 0; i-- {
		rec := records[i]
		fmt.Fprintf(&b, "**%s** (%s) — %s\n", rec.FileName, rec.Service, rec.URL)
	}
	return core.RespondEphemeral(sc.Session, sc.Event, b.String())
}

func (c *UploadCommand) runDelete(sc *core.SlashContext, sub *discordgo.ApplicationCommandInteractionDataOption) error {
	_, _, rawURL := subOptions(sub)

	removed, err := sc.Deps.Storage.DeleteUpload(core.InteractionUserID(sc.Event), rawURL)
	if err != nil {
		return core.RespondEphemeral(sc.Session, sc.Event, "📁 Could not update your uploads.")
	}
	if !removed {
		return core.RespondEphemeral(sc.Session, sc.Event, "📁 No upload of yours matches that URL.")
	}

	// Account-backed catbox files can also be removed remotely.
	deleteCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := sc.Deps.Uploads.DeleteFiles(deleteCtx, []string{path.Base(rawURL)}); err != nil && !errors.Is(err, upload.ErrNoAccount) {
		return core.RespondEphemeral(sc.Session, sc.Event,
			"📁 Forgot the record, but the hosted file could not be deleted.")
	}
	return core.RespondEphemeral(sc.Session, sc.Event, "📁 Deleted.")
}

func (c *UploadCommand) remember(sc *core.SlashContext, rec storage.UploadRecord) {
	if err := sc.Deps.Storage.AppendUpload(core.InteractionUserID(sc.Event), rec); err != nil {
		sc.Deps.Log.Warn("upload history append failed", zap.Error(err))
	}
}

func uploadErrorText(err error) string {
	switch {
	case errors.Is(err, upload.ErrFileTooLarge):
		return "📁 That file exceeds the service's size limit."
	case errors.Is(err, upload.ErrUnknownService):
		return "📁 That service cannot handle this request."
	default:
		return "📁 Upload failed, try again later."
	}
}
