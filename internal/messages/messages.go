package messages

const (
	IntroMessage = "🏎️ mkwab – マリオカートワールド オートバランス\n" +
		"レートに応じて 2 / 3 / 4 チームに編成し、勝利チームのレートを更新します。\n" +
		"/help でコマンド一覧を表示します。"

	HelpMessage = "コマンド一覧:\n" +
		"/add 名前：レート、名前：レート … 一括入力（枠1から上書き、最大24人、参加ON）\n" +
		"/append 名前：レート … 空き枠に追加（同名はレートを更新）\n" +
		"/set 枠番号 名前：レート 1枠だけ編集\n" +
		"/clear 枠番号 枠を空にする\n" +
		"/list 現在のプレイヤー一覧\n" +
		"/toggle 名前 参加ON/OFFの切り替え\n" +
		"/teams 2 3 4 チーム数の選択\n" +
		"/mult 1.03 勝利時の更新倍率\n" +
		"/random ランダムにレートを割り当てる\n" +
		"/split チームを分ける\n" +
		"/reset 入力をリセット"

	NoResults       = "まだ編成結果はありません。/split で編成を実行してください。"
	ResultExpired   = "この編成結果は見つかりません。もう一度 /split で編成してください。"
	ResultStale     = "この編成結果は新しい編成で置き換えられました。"
	BadWinner       = "勝利チームの指定が不正です。"
	TooFewPlayers   = "⚠️ 2人以上選んでください。（名前が空欄だと無視されます）"
	NoTeamCount     = "（条件を満たすチーム数が選択されていないため、編成は行われませんでした）"
	ResetDone       = "🔄 入力をリセットしました。"
	AddUsage        = "使い方: /add 名前：レート、名前：レート"
	AppendUsage     = "使い方: /append 名前：レート、名前：レート"
	SetUsage        = "使い方: /set 枠番号 名前：レート"
	ClearUsage      = "使い方: /clear 枠番号"
	ToggleUsage     = "使い方: /toggle 名前"
	TeamsUsage      = "使い方: /teams 2 3 4"
	MultUsage       = "使い方: /mult 1.03"
	UnknownCommand  = "不明なコマンドです。/help を参照してください。"
	InternalError   = "エラーが発生しました。しばらくしてからもう一度お試しください。"
	WinButtonPrefix = "🏆 "
)
