package messages

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"mkwab/internal/logic"
	"mkwab/internal/roster"
)

// TeamLabel names team i: A, B, C, ... and T27, T28 beyond Z.
func TeamLabel(i int) string {
	if i >= 0 && i < 26 {
		return string(rune('A' + i))
	}
	return "T" + strconv.Itoa(i+1)
}

// Result renders one k-team result as a plain text block.
func Result(k int, res logic.Result) string {
	var sb strings.Builder
	spread := "-"
	if res.Computable() {
		spread = strconv.Itoa(*res.Spread)
	}
	fmt.Fprintf(&sb, "🧩 %dチーム編成（合計レート差: %s）\n", k, spread)
	for i, team := range res.Teams {
		sum := 0
		if i < len(res.Sums) {
			sum = res.Sums[i]
		}
		fmt.Fprintf(&sb, "\nチーム%s（合計: %d）\n", TeamLabel(i), sum)
		for j, p := range team {
			fmt.Fprintf(&sb, "%2d. %s  %d\n", j+1, p.Name, p.Rating)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// Summary is the line announcing an assignment.
func Summary(players int, teamCounts, skipped []int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "💡 チーム分けしました！ 参加人数: %d（%sチーム）", players, joinInts(teamCounts))
	for _, k := range skipped {
		sb.WriteString("\n")
		sb.WriteString(NotEnoughForTeams(k, players))
	}
	return sb.String()
}

func NotEnoughForTeams(k, players int) string {
	return fmt.Sprintf("⚠️ %dチーム編成には最低%d人が必要です。（現在 %d 人）", k, k, players)
}

func TooManyPlayers(limit int) string {
	return fmt.Sprintf("❌ 参加者が%d人を超えています。", limit)
}

// Roster lists the named slots with their participation flag.
func Roster(r *roster.Roster) string {
	var sb strings.Builder
	n := 0
	for i, s := range r.Slots {
		if strings.TrimSpace(s.Name) == "" {
			continue
		}
		mark := "⬜"
		if s.Active {
			mark = "✅"
			n++
		}
		fmt.Fprintf(&sb, "%s 枠%d %s  %d\n", mark, i+1, s.Name, s.Rating)
	}
	if sb.Len() == 0 {
		return "プレイヤーが登録されていません。/add で入力してください。"
	}
	fmt.Fprintf(&sb, "参加: %d人", n)
	return sb.String()
}

// ParseReport describes the outcome of a bulk input.
func ParseReport(applied int, problems []roster.EntryError) string {
	var lines []string
	if applied > 0 {
		lines = append(lines, fmt.Sprintf("✅ %d人を一括反映しました（参加ON）。", applied))
	}
	if len(problems) > 0 {
		lines = append(lines, "⚠️ 次の項目は反映できませんでした：")
		for _, p := range problems {
			lines = append(lines, "- "+problem(p))
		}
	}
	if len(lines) == 0 {
		return AddUsage
	}
	return strings.Join(lines, "\n")
}

func problem(p roster.EntryError) string {
	switch {
	case errors.Is(p, roster.ErrNoSeparator):
		return "区切り（: または ：）が見つかりません: " + p.Raw
	case errors.Is(p, roster.ErrEmptyName):
		return "名前が空です: " + p.Raw
	case errors.Is(p, roster.ErrNameTooLong):
		return fmt.Sprintf("名前が長すぎます（最大%d文字）: %s", roster.MaxNameLength, p.Raw)
	case errors.Is(p, roster.ErrBadRating):
		return "レートが数値ではありません: " + p.Raw
	case errors.Is(p, roster.ErrRosterFull):
		return fmt.Sprintf("%d枠を超えたためスキップ: %s", roster.MaxSlots, p.Raw)
	default:
		return "不正な項目です: " + p.Raw
	}
}

// SlotSet confirms a single-slot edit; i is zero-based.
func SlotSet(i int, s roster.Slot) string {
	return fmt.Sprintf("✏️ 枠%d を %s（%d）に設定しました（参加ON）。", i+1, s.Name, s.Rating)
}

func SlotCleared(i int) string {
	return fmt.Sprintf("🧹 枠%d を空にしました。", i+1)
}

func BadSlot() string {
	return fmt.Sprintf("枠番号は 1〜%d で指定してください。", roster.MaxSlots)
}

func Toggled(s roster.Slot) string {
	if s.Active {
		return fmt.Sprintf("✅ %s は参加します。", s.Name)
	}
	return fmt.Sprintf("⬜ %s は不参加になりました。", s.Name)
}

func NoMatch(query string) string {
	return fmt.Sprintf("「%s」に近いプレイヤーが見つかりません。", query)
}

func TeamCounts(ks []int) string {
	return fmt.Sprintf("🧮 チーム数: %s", joinInts(ks))
}

func Multiplier(m string) string {
	return fmt.Sprintf("📈 更新倍率: %s", m)
}

func Randomized(lo, hi int) string {
	return fmt.Sprintf("🎲 ランダムレート（%d〜%d）を割り当てました。", lo, hi)
}

// Win reports a rating update for the winning team.
func Win(k, winner int, multiplier string, members []string) string {
	return fmt.Sprintf("✅ レートを更新しました！（%dチーム編成／勝利: %s／倍率: %s）\n%s",
		k, TeamLabel(winner), multiplier, strings.Join(members, ", "))
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, ", ")
}
