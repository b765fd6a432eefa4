package commands

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/susu3304/sessionbook/internal/booking"
)

// SessionHandler runs /session subcommands against the booking engine.
// The caller identity is the Discord user ID.
type SessionHandler struct {
	Engine    *booking.Engine
	Directory booking.Directory
	Clock     booking.Clock
}

var errorMessages = map[string]string{
	"SESSION_NOT_FOUND":        "セッションが見つかりません",
	"SESSION_NOT_AVAILABLE":    "このセッションは予約できません",
	"SESSION_ALREADY_STARTED":  "セッションは既に開始しています",
	"SESSION_NOT_BOOKED":       "このセッションは予約されていません",
	"CANNOT_CANCEL_SESSION":    "このセッションはもう取り消せません",
	"SESSION_NOT_ENDED":        "セッションはまだ終了していません",
	"NOT_COUNSELOR":            "このセッションのカウンセラーではありません",
	"NOT_BOOKER":               "このセッションを予約したユーザーではありません",
	"NOT_AUTHORIZED":           "このセッションの参加者ではありません",
	"NOT_REGISTERED_USER":      "ユーザー登録されていません（/session register role:user）",
	"NOT_REGISTERED_COUNSELOR": "カウンセラー登録されていません（/session register role:counselor）",
	"START_TIME_IN_PAST":       "開始時刻が過去です",
	"INVALID_DURATION":         "長さが不正です",
	"INVALID_FEE":              "料金が不正です",
	"INCORRECT_PAYMENT":        "支払額が料金と一致しません",
	"INVALID_IDENTITY":         "ユーザーを特定できませんでした",
}

// HandleSession answers a /session interaction.
func HandleSession(s *discordgo.Session, i *discordgo.InteractionCreate, h *SessionHandler) {
	data := i.ApplicationCommandData()
	if len(data.Options) == 0 {
		respondText(s, i, "サブコマンドが指定されていません")
		return
	}

	caller := booking.Identity(interactionUserID(i))
	respondText(s, i, h.Execute(context.Background(), caller, data.Options[0]))
}

// Execute runs one subcommand and returns the reply text.
func (h *SessionHandler) Execute(ctx context.Context, caller booking.Identity, sub *discordgo.ApplicationCommandInteractionDataOption) string {
	switch sub.Name {
	case "register":
		return h.register(ctx, caller, sub.Options)
	case "offer":
		return h.offer(ctx, caller, sub.Options)
	case "book":
		id, ok := sessionIDOption(sub.Options)
		payment := getIntOption(sub.Options, "payment")
		if !ok || payment == nil {
			return "id と payment の指定が必要です"
		}
		ev, err := h.Engine.Book(ctx, caller, id, booking.Amount(*payment))
		if err != nil {
			return errorText(err)
		}
		return fmt.Sprintf("セッション #%d を予約しました（預かり金 %d）", ev.SessionID, ev.Escrowed)
	case "cancel":
		return h.withSession(sub.Options, func(id booking.SessionID) string {
			ev, err := h.Engine.CancelByUser(ctx, caller, id)
			if err != nil {
				return errorText(err)
			}
			return fmt.Sprintf("セッション #%d をキャンセルしました（返金 %d / キャンセル料 %d）", ev.SessionID, ev.Refunded, ev.Paid)
		})
	case "counselor-cancel":
		return h.withSession(sub.Options, func(id booking.SessionID) string {
			ev, err := h.Engine.CancelByCounselor(ctx, caller, id)
			if err != nil {
				return errorText(err)
			}
			if ev.Refunded > 0 {
				return fmt.Sprintf("セッション #%d を取り消しました（ユーザーに %d を返金）", ev.SessionID, ev.Refunded)
			}
			return fmt.Sprintf("セッション #%d を取り消しました", ev.SessionID)
		})
	case "complete":
		return h.withSession(sub.Options, func(id booking.SessionID) string {
			ev, err := h.Engine.Complete(ctx, caller, id)
			if err != nil {
				return errorText(err)
			}
			return fmt.Sprintf("セッション #%d を完了しました（受取 %d）", ev.SessionID, ev.Paid)
		})
	case "noshow":
		absent := getBoolOption(sub.Options, "counselor_absent")
		if absent == nil {
			return "counselor_absent の指定が必要です"
		}
		return h.withSession(sub.Options, func(id booking.SessionID) string {
			ev, err := h.Engine.MarkNoShow(ctx, caller, id, *absent)
			if err != nil {
				return errorText(err)
			}
			if *absent {
				return fmt.Sprintf("セッション #%d: カウンセラー欠席としてユーザーに %d を返金しました", ev.SessionID, ev.Refunded)
			}
			return fmt.Sprintf("セッション #%d: ユーザー欠席としてカウンセラーに %d を支払いました", ev.SessionID, ev.Paid)
		})
	case "show":
		return h.withSession(sub.Options, func(id booking.SessionID) string {
			return h.show(ctx, caller, id)
		})
	case "mine":
		return h.mine(ctx, caller)
	case "balance":
		b, err := h.Engine.Balance(ctx, caller)
		if err != nil {
			return errorText(err)
		}
		return fmt.Sprintf("<@%s> の残高: %d", caller, b)
	default:
		return "不明なサブコマンドです"
	}
}

func (h *SessionHandler) register(ctx context.Context, caller booking.Identity, opts []*discordgo.ApplicationCommandInteractionDataOption) string {
	role := getStringOption(opts, "role")
	if role == nil {
		return "role の指定が必要です"
	}
	var err error
	switch booking.Role(*role) {
	case booking.RoleUser:
		err = h.Directory.RegisterUser(ctx, caller)
	case booking.RoleCounselor:
		err = h.Directory.RegisterCounselor(ctx, caller)
	default:
		return "role は user か counselor を指定してください"
	}
	if err != nil {
		return errorText(err)
	}
	return fmt.Sprintf("%s として登録しました", *role)
}

func (h *SessionHandler) offer(ctx context.Context, caller booking.Identity, opts []*discordgo.ApplicationCommandInteractionDataOption) string {
	startsIn := getIntOption(opts, "starts_in_minutes")
	duration := getIntOption(opts, "duration_minutes")
	fee := getIntOption(opts, "fee")
	if startsIn == nil || duration == nil || fee == nil {
		return "starts_in_minutes, duration_minutes, fee の指定が必要です"
	}

	lead, err := booking.DurationOf(*startsIn, time.Minute)
	if err != nil {
		return "starts_in_minutes が範囲外です"
	}
	length, err := booking.DurationOf(*duration, time.Minute)
	if err != nil {
		return errorText(err)
	}
	start := h.Clock.Now().Add(lead).Truncate(time.Second)
	ev, err := h.Engine.Offer(ctx, caller, start, length, booking.Amount(*fee))
	if err != nil {
		return errorText(err)
	}
	return fmt.Sprintf("セッション #%d を作成しました（開始 %s / %d分 / 料金 %d）",
		ev.SessionID, discordTime(start), *duration, *fee)
}

func (h *SessionHandler) show(ctx context.Context, caller booking.Identity, id booking.SessionID) string {
	d, err := h.Engine.GetSessionDetails(ctx, caller, id)
	if errors.Is(err, booking.ErrNotAuthorized) {
		// Non-participants only see the public part.
		v, err := h.Engine.GetSession(ctx, id)
		if err != nil {
			return errorText(err)
		}
		return formatSession(v)
	}
	if err != nil {
		return errorText(err)
	}

	var b strings.Builder
	b.WriteString(formatSession(d.SessionView))
	if d.User != booking.None {
		fmt.Fprintf(&b, "\n予約者: <@%s>", d.User)
	}
	fmt.Fprintf(&b, "\n預かり金: %d", d.Escrow)
	return b.String()
}

func (h *SessionHandler) mine(ctx context.Context, caller booking.Identity) string {
	booked, err := h.Engine.MyBookedSessions(ctx, caller)
	if err != nil {
		return errorText(err)
	}
	hosted, err := h.Engine.CounselorBookedSessions(ctx, caller)
	if err != nil {
		return errorText(err)
	}
	if len(booked) == 0 && len(hosted) == 0 {
		return "予約履歴はありません"
	}

	var b strings.Builder
	if len(booked) > 0 {
		fmt.Fprintf(&b, "予約したセッション: %s", joinIDs(booked))
	}
	if len(hosted) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "予約されたセッション: %s", joinIDs(hosted))
	}
	return b.String()
}

func (h *SessionHandler) withSession(opts []*discordgo.ApplicationCommandInteractionDataOption, fn func(booking.SessionID) string) string {
	id, ok := sessionIDOption(opts)
	if !ok {
		return "id の指定が必要です"
	}
	return fn(id)
}

func sessionIDOption(opts []*discordgo.ApplicationCommandInteractionDataOption) (booking.SessionID, bool) {
	v := getIntOption(opts, "id")
	if v == nil || *v <= 0 {
		return 0, false
	}
	return booking.SessionID(*v), true
}

func errorText(err error) string {
	code := booking.CodeOf(err)
	if msg, ok := errorMessages[code]; ok {
		return msg
	}
	log.Printf("commands: session command failed: %v", err)
	return "処理に失敗しました"
}

func formatSession(v booking.SessionView) string {
	return fmt.Sprintf("セッション #%d [%s]\nカウンセラー: <@%s>\n開始: %s / %d分 / 料金 %d",
		v.ID, v.Status, v.Counselor, discordTime(v.StartTime), int64(v.Duration/time.Minute), v.Fee)
}

// discordTime renders t as a Discord timestamp shown in each viewer's timezone.
func discordTime(t time.Time) string {
	return fmt.Sprintf("<t:%d:f>", t.Unix())
}

func joinIDs(ids []booking.SessionID) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("#%d", id))
	}
	return strings.Join(parts, ", ")
}
