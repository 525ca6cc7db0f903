// Package locale holds the learner-facing message catalog. Messages are keyed
// by their English text; Chinese is the default language.
package locale

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys.
const (
	NodeNotFound = "knowledge point not found"

	NeedsReinforcement = "this knowledge point needs reinforcement"
	InProgress         = "in progress, keep consolidating"
	FinalStretch       = "almost mastered, final stretch"
	PrereqsMet         = "all prerequisites met"
	PrereqsMissing     = "%d prerequisites still to complete"
	EntryPoint         = "good entry point"
	Challenging        = "challenging content"
	ReasonSeparator    = ", "

	NothingDue  = "nothing to review today, keep learning new topics!"
	FewDue      = "%d knowledge points to review today, fit them in when you can!"
	SeveralDue  = "%d knowledge points to review today, plan some time for them."
	ManyDue     = "%d knowledge points to review today, be sure to finish them before you forget!"
	StartBasics = "start with the foundational knowledge points"
	KeepPace    = "keep the pace and raise the difficulty step by step"
	NearlyDone  = "almost done with this stage, keep going!"
	GradeDone   = "congratulations, you have nearly finished this grade!"
	FocusHint   = "several topics are in progress, focus on finishing one or two"

	CoachSystem   = "You are a warm, patient maths coach for a grade %d pupil. Reply in two or three short sentences: praise real progress, then name one concrete next step."
	CoachProgress = "Progress: %d of %d knowledge points mastered (%d%%), %d in progress."
	CoachPlan     = "Today's plan: %s."
	CoachReviews  = "Reviews due today: %d."
)

var zh = map[string]string{
	NodeNotFound:       "知识点不存在",
	NeedsReinforcement: "该知识点需要加强学习",
	InProgress:         "正在学习中，继续巩固",
	FinalStretch:       "即将掌握，最后冲刺",
	PrereqsMet:         "已满足所有前置条件",
	PrereqsMissing:     "还需完成 %d 个前置知识点",
	EntryPoint:         "适合作为入门内容",
	Challenging:        "具有挑战性的内容",
	ReasonSeparator:    "，",
	NothingDue:         "今天没有需要复习的内容，继续加油学习新知识吧！",
	FewDue:             "今天有%d个知识点需要复习，抽空完成吧！",
	SeveralDue:         "今天有%d个知识点需要复习，建议安排时间完成。",
	ManyDue:            "今天有%d个知识点需要复习，请务必完成，防止遗忘！",
	StartBasics:        "建议从基础知识点开始学习",
	KeepPace:           "保持学习节奏，逐步提升难度",
	NearlyDone:         "即将完成本阶段学习，加油！",
	GradeDone:          "恭喜你即将完成本年级所有内容！",
	FocusHint:          "有多个知识点正在学习中，建议集中精力完成一两个",
	CoachSystem:        "你是一位温暖耐心的数学老师，正在辅导%d年级的小学生。请用两三句简短的话回复：先肯定真实的进步，再给出一个具体的下一步建议。",
	CoachProgress:      "学习进度：已掌握%d/%d个知识点（%d%%），%d个正在学习。",
	CoachPlan:          "今日计划：%s。",
	CoachReviews:       "今天待复习：%d个。",
}

var (
	supported = []language.Tag{language.SimplifiedChinese, language.English}
	matcher   = language.NewMatcher(supported)
	cat       = newCatalog()
)

func newCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.SimplifiedChinese))
	for key, msg := range zh {
		_ = b.SetString(language.SimplifiedChinese, key, msg)
		_ = b.SetString(language.English, key, key)
	}
	return b
}

// Default is the language used when nothing better matches.
var Default = language.SimplifiedChinese

// Match picks the best supported language for an Accept-Language header or
// a bare tag such as "en" or "zh-CN".
func Match(accept string) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(accept)
	if err != nil || len(tags) == 0 {
		return Default
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return Default
	}
	return supported[idx]
}

// Printer returns a printer bound to the catalog for tag.
func Printer(tag language.Tag) *message.Printer {
	return message.NewPrinter(tag, message.Catalog(cat))
}
