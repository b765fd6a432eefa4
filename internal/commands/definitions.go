package commands

import "github.com/bwmarrin/discordgo"

// SessionCommand is the name of the single top-level slash command.
const SessionCommand = "session"

func GetCommands() []*discordgo.ApplicationCommand {
	minOne := float64(1)
	minZero := float64(0)

	sessionIDOption := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionInteger,
		Name:        "id",
		Description: "セッションID",
		Required:    true,
		MinValue:    &minOne,
	}

	return []*discordgo.ApplicationCommand{
		{
			Name:         SessionCommand,
			Description:  "カウンセリングセッションの予約と精算",
			DMPermission: boolPtr(true),
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "register",
					Description: "ユーザーまたはカウンセラーとして登録します",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "role",
							Description: "登録する役割",
							Required:    true,
							Choices: []*discordgo.ApplicationCommandOptionChoice{
								{Name: "user", Value: "user"},
								{Name: "counselor", Value: "counselor"},
							},
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "offer",
					Description: "セッションを募集します",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionInteger,
							Name:        "starts_in_minutes",
							Description: "何分後に開始するか",
							Required:    true,
							MinValue:    &minOne,
						},
						{
							Type:        discordgo.ApplicationCommandOptionInteger,
							Name:        "duration_minutes",
							Description: "長さ（分）",
							Required:    true,
							MinValue:    &minOne,
						},
						{
							Type:        discordgo.ApplicationCommandOptionInteger,
							Name:        "fee",
							Description: "料金",
							Required:    true,
							MinValue:    &minZero,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "book",
					Description: "セッションを予約して料金を預けます",
					Options: []*discordgo.ApplicationCommandOption{
						sessionIDOption,
						{
							Type:        discordgo.ApplicationCommandOptionInteger,
							Name:        "payment",
							Description: "支払額（料金と同額）",
							Required:    true,
							MinValue:    &minZero,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "cancel",
					Description: "予約をキャンセルします",
					Options:     []*discordgo.ApplicationCommandOption{sessionIDOption},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "counselor-cancel",
					Description: "カウンセラーとしてセッションを取り消します",
					Options:     []*discordgo.ApplicationCommandOption{sessionIDOption},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "complete",
					Description: "セッションを完了して料金を受け取ります",
					Options:     []*discordgo.ApplicationCommandOption{sessionIDOption},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "noshow",
					Description: "欠席を記録します",
					Options: []*discordgo.ApplicationCommandOption{
						sessionIDOption,
						{
							Type:        discordgo.ApplicationCommandOptionBoolean,
							Name:        "counselor_absent",
							Description: "カウンセラーが欠席した場合は true",
							Required:    true,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "show",
					Description: "セッションの詳細を表示します",
					Options:     []*discordgo.ApplicationCommandOption{sessionIDOption},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "mine",
					Description: "自分の予約とセッション一覧",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "balance",
					Description: "残高を表示します",
				},
			},
		},
	}
}

func boolPtr(b bool) *bool {
	return &b
}
