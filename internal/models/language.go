package models

// Language constants
const (
	LangSimplifiedChinese  = "zh_CN"
	LangTraditionalChinese = "zh_TW"
	LangEnglish            = "en"
)

// DefaultLanguage is used when the user's Telegram language is unknown
const DefaultLanguage = LangEnglish

// Translation is a map of message keys to translated text
type Translation map[string]string

// Translations stores all language translations
var Translations = map[string]Translation{
	LangEnglish: {
		"cmd_desc_help":          "Show help",
		"cmd_desc_scan":          "Rebuild the message search cache",
		"cmd_desc_purge":         "Search messages and delete them after confirmation",
		"cmd_desc_purge_confirm": "Confirm the pending purge",
		"cmd_desc_purge_cancel":  "Cancel the pending purge",
		"cmd_desc_cache_status":  "Show the message cache status",

		"help_text": "<b>Search and purge</b>\n" +
			"/scan - rebuild the message cache (required every 24 hours)\n" +
			"/purge &lt;text&gt; [-here] [-user &lt;id&gt;] [-percent &lt;n&gt;] - find messages containing the text\n" +
			"/purge_confirm - delete the messages found by your last /purge\n" +
			"/purge_cancel - discard your last /purge\n" +
			"/cache_status - show cache age and size\n\n" +
			"Replying to a user's message with /purge limits the search to that user.",

		"user_not_admin":    "Only group administrators can use this command.",
		"purge_usage":       "Usage: /purge &lt;text&gt; [-here] [-user &lt;id&gt;] [-percent &lt;1-100&gt;]",
		"invalid_percent":   "The percentage must be a whole number between 1 and 100.",
		"invalid_query":     "Give some text to search for, or a user or channel filter.",
		"scan_started":      "🔎 Scanning message history...",
		"scan_progress":     "🔎 Scanning... %d/%d channels, %d messages",
		"scan_done":         "✅ Scan complete: %d messages in %d channels, %d unique words (%d channels skipped).",
		"scan_failed":       "❌ Scan failed: %s",
		"operation_failed":  "❌ Failed: %s",
		"scan_in_progress":  "A scan is already running. Try again when it finishes.",
		"cache_missing":     "There is no message cache yet. Run /scan first.",
		"cache_stale":       "The message cache is older than %s. Run /scan to refresh it, then search again.",
		"no_matches":        "No messages matched \"%s\". Try different words or filters.",
		"nothing_selected":  "%d messages matched, but %d%% of them rounds down to zero. Use a larger percentage.",
		"purge_found":       "Found <b>%d</b> messages matching \"%s\".\n<b>%d</b> will be deleted. Confirm within %s.",
		"button_confirm":    "🗑 Delete",
		"button_cancel":     "Cancel",
		"no_pending":        "You have nothing waiting for confirmation. Run /purge first.",
		"pending_expired":   "Your purge request expired. Run /purge again.",
		"pending_replaced":  "This button belongs to an older /purge request that was replaced. Use the buttons on the latest one.",
		"purge_cancelled":   "Purge cancelled.",
		"not_your_request":  "This purge belongs to another user.",
		"purge_started":     "🗑 Deleting %d messages...",
		"purge_progress":    "🗑 Deleting... %d deleted, %d failed, %d total",
		"purge_done":        "✅ Purge finished: %d deleted, %d failed.",
		"purge_interrupted": "❌ The purge stopped unexpectedly. Some messages may not have been deleted.",
		"cache_status":      "Snapshot %s\nScanned: %s (%s ago)\nFresh: %s\nMessages: %d, channels: %d, words: %d",
		"cache_status_none": "No snapshot has been built yet.",
		"yes":               "yes",
		"no":                "no",
	},
	LangSimplifiedChinese: {
		"cmd_desc_help":          "显示帮助信息",
		"cmd_desc_scan":          "重建消息搜索缓存",
		"cmd_desc_purge":         "搜索消息并在确认后删除",
		"cmd_desc_purge_confirm": "确认待执行的清理",
		"cmd_desc_purge_cancel":  "取消待执行的清理",
		"cmd_desc_cache_status":  "查看消息缓存状态",

		"help_text": "<b>搜索与清理</b>\n" +
			"/scan - 重建消息缓存（每24小时需要重新扫描）\n" +
			"/purge &lt;文本&gt; [-here] [-user &lt;用户ID&gt;] [-percent &lt;n&gt;] - 查找包含该文本的消息\n" +
			"/purge_confirm - 删除上一次 /purge 找到的消息\n" +
			"/purge_cancel - 放弃上一次 /purge\n" +
			"/cache_status - 查看缓存时间和大小\n\n" +
			"回复某个用户的消息并发送 /purge 可只搜索该用户。",

		"user_not_admin":    "只有群组管理员才能使用该指令。",
		"purge_usage":       "用法: /purge &lt;文本&gt; [-here] [-user &lt;用户ID&gt;] [-percent &lt;1-100&gt;]",
		"invalid_percent":   "百分比必须是 1 到 100 之间的整数。",
		"invalid_query":     "请提供要搜索的文本，或指定用户/频道过滤条件。",
		"scan_started":      "🔎 正在扫描消息历史...",
		"scan_progress":     "🔎 扫描中... %d/%d 个频道，%d 条消息",
		"scan_done":         "✅ 扫描完成：%d 条消息，%d 个频道，%d 个不同词语（跳过 %d 个频道）。",
		"scan_failed":       "❌ 扫描失败：%s",
		"operation_failed":  "❌ 操作失败：%s",
		"scan_in_progress":  "已有扫描正在进行，请稍后再试。",
		"cache_missing":     "还没有消息缓存，请先执行 /scan。",
		"cache_stale":       "消息缓存已超过 %s，请先执行 /scan 刷新后再搜索。",
		"no_matches":        "没有找到匹配 \"%s\" 的消息，请尝试其他词语或过滤条件。",
		"nothing_selected":  "匹配到 %d 条消息，但按 %d%% 计算为零条，请使用更大的百分比。",
		"purge_found":       "找到 <b>%d</b> 条匹配 \"%s\" 的消息。\n将删除 <b>%d</b> 条，请在 %s 内确认。",
		"button_confirm":    "🗑 删除",
		"button_cancel":     "取消",
		"no_pending":        "您没有待确认的清理，请先执行 /purge。",
		"pending_expired":   "清理请求已过期，请重新执行 /purge。",
		"pending_replaced":  "该按钮属于已被新 /purge 请求替换的旧请求，请使用最新消息上的按钮。",
		"purge_cancelled":   "已取消清理。",
		"not_your_request":  "这个清理请求属于其他用户。",
		"purge_started":     "🗑 正在删除 %d 条消息...",
		"purge_progress":    "🗑 删除中... 已删除 %d，失败 %d，共 %d",
		"purge_done":        "✅ 清理完成：已删除 %d 条，失败 %d 条。",
		"purge_interrupted": "❌ 清理意外中断，部分消息可能未被删除。",
		"cache_status":      "快照 %s\n扫描时间：%s（%s 前）\n有效：%s\n消息：%d，频道：%d，词语：%d",
		"cache_status_none": "尚未建立快照。",
		"yes":               "是",
		"no":                "否",
	},
	LangTraditionalChinese: {
		"user_not_admin":   "只有群組管理員才能使用該指令。",
		"cache_missing":    "還沒有訊息快取，請先執行 /scan。",
		"cache_stale":      "訊息快取已超過 %s，請先執行 /scan 重新整理後再搜尋。",
		"no_matches":       "沒有找到符合 \"%s\" 的訊息，請嘗試其他詞語或篩選條件。",
		"no_pending":       "您沒有待確認的清理，請先執行 /purge。",
		"pending_expired":  "清理請求已過期，請重新執行 /purge。",
		"pending_replaced": "此按鈕屬於已被新 /purge 請求取代的舊請求，請使用最新訊息上的按鈕。",
		"purge_cancelled":  "已取消清理。",
		"purge_done":       "✅ 清理完成：已刪除 %d 則，失敗 %d 則。",
		"button_confirm":   "🗑 刪除",
		"button_cancel":    "取消",
		"scan_in_progress": "已有掃描正在進行，請稍後再試。",
	},
}

// GetTranslation returns the translation for a language code and key.
// Missing languages and keys fall back to the default language, then to the key.
func GetTranslation(lang, key string) string {
	if _, ok := Translations[lang]; !ok {
		lang = DefaultLanguage
	}

	if translation, ok := Translations[lang][key]; ok {
		return translation
	}

	if translation, ok := Translations[DefaultLanguage][key]; ok {
		return translation
	}

	return key
}

// LanguageFromCode maps a Telegram IETF language tag to a supported language
func LanguageFromCode(code string) string {
	switch code {
	case "zh", "zh-hans", "zh-cn", "zh-CN":
		return LangSimplifiedChinese
	case "zh-hant", "zh-tw", "zh-TW", "zh-hk", "zh-HK":
		return LangTraditionalChinese
	default:
		return DefaultLanguage
	}
}
