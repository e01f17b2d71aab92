package messages

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"mkwab/internal/logic"
	"mkwab/internal/roster"
)

func TestTeamLabel(t *testing.T) {
	require.Equal(t, "A", TeamLabel(0))
	require.Equal(t, "D", TeamLabel(3))
	require.Equal(t, "Z", TeamLabel(25))
	require.Equal(t, "T27", TeamLabel(26))
}

func TestResult(t *testing.T) {
	res, err := logic.Balance([]logic.Player{
		{Name: "A", Rating: 7000},
		{Name: "B", Rating: 7100},
		{Name: "C", Rating: 6900},
		{Name: "D", Rating: 7200},
	}, 2)
	require.NoError(t, err)

	want := "🧩 2チーム編成（合計レート差: 0）\n" +
		"\nチームA（合計: 14100）\n" +
		" 1. D  7200\n" +
		" 2. C  6900\n" +
		"\nチームB（合計: 14100）\n" +
		" 1. B  7100\n" +
		" 2. A  7000"
	require.Equal(t, want, Result(2, res))
}

func TestResult_NotComputable(t *testing.T) {
	res, err := logic.Balance([]logic.Player{{Name: "A", Rating: 7000}}, 2)
	require.ErrorIs(t, err, logic.ErrCapacity)

	got := Result(2, res)

	require.Equal(t, "🧩 2チーム編成（合計レート差: -）\n\nチームA（合計: 0）\n\nチームB（合計: 0）", got)
}

func TestSummary(t *testing.T) {
	got := Summary(3, []int{2, 3}, []int{4})

	require.Equal(t, "💡 チーム分けしました！ 参加人数: 3（2, 3チーム）\n⚠️ 4チーム編成には最低4人が必要です。（現在 3 人）", got)
}

func TestRoster(t *testing.T) {
	require.Contains(t, Roster(roster.New()), "/add")

	r := roster.New()
	r.Apply([]roster.Entry{{Name: "a", Rating: 1}, {Name: "b", Rating: 2}})
	r.Slots[1].Active = false

	require.Equal(t, "✅ 枠1 a  1\n⬜ 枠2 b  2\n参加: 1人", Roster(r))
}

func TestParseReport(t *testing.T) {
	entries, problems := roster.Parse("a:1, nope, :3, c:x")
	require.Len(t, entries, 1)

	got := ParseReport(len(entries), problems)

	require.Equal(t, "✅ 1人を一括反映しました（参加ON）。\n"+
		"⚠️ 次の項目は反映できませんでした：\n"+
		"- 区切り（: または ：）が見つかりません: nope\n"+
		"- 名前が空です: :3\n"+
		"- レートが数値ではありません: c:x", got)
	require.Equal(t, AddUsage, ParseReport(0, nil))
}

func TestParseReport_LongName(t *testing.T) {
	raw := strings.Repeat("n", roster.MaxNameLength+1) + ":1"
	_, problems := roster.Parse(raw)

	got := ParseReport(0, problems)

	require.Equal(t, "⚠️ 次の項目は反映できませんでした：\n- 名前が長すぎます（最大64文字）: "+raw, got)
}

func TestSlotMessages(t *testing.T) {
	require.Equal(t, "✏️ 枠3 を E（5000）に設定しました（参加ON）。", SlotSet(2, roster.Slot{Name: "E", Rating: 5000, Active: true}))
	require.Equal(t, "🧹 枠1 を空にしました。", SlotCleared(0))
	require.Equal(t, "枠番号は 1〜24 で指定してください。", BadSlot())
}

func TestWin(t *testing.T) {
	require.Equal(t, "✅ レートを更新しました！（2チーム編成／勝利: A／倍率: 1.03）\nD, C",
		Win(2, 0, "1.03", []string{"D", "C"}))
}
