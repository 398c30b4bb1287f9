package authoring

import (
	"fmt"

	"github.com/hrygo/personaflow/plugin/ai/persona"
	"github.com/hrygo/personaflow/plugin/ai/recollection"
)

var kindLabels = map[recollection.Kind]string{
	recollection.KindEducation:   "求学经历",
	recollection.KindWork:        "工作经历",
	recollection.KindFamily:      "家庭生活",
	recollection.KindHobby:       "兴趣爱好",
	recollection.KindTrauma:      "挫折或创伤",
	recollection.KindAchievement: "重要成就",
	recollection.KindSocial:      "人际交往",
	recollection.KindGrowth:      "成长转折",
	recollection.KindSelf:        "独处与自我",
}

func draftPrompt(p *persona.Persona, kind recollection.Kind) (system, user string) {
	label, ok := kindLabels[kind]
	if !ok {
		label = "人生经历"
	}
	system = `你是角色背景设计师，擅长写真实、具体、带情绪起伏的人生片段。
写出的经历要符合角色的年龄、职业和时代背景，体现性格，包含具体的时间、地点、人物和细节。`

	user = fmt.Sprintf(`为下面这个角色写一段“%s”类的往事。

角色：
%s
字段要求：
- kind 固定为 "%s"
- title：不超过12个字的标题
- content：150字左右的第一人称叙述
- time：{"age": 当时年龄（整数）, "period": 人生阶段, "specific": 具体时间}
- emotion：{"immediate": [当时的情绪], "reflected": [事后的体会], "residual": 现在残留的感受, "intensity": 1-10}
- importance：{"score": 1-10, "reason": 为什么重要, "frequency": 多久想起一次}
- behavior_impact：{"habit_formed": 养成的习惯, "attitude_change": 态度变化, "response_pattern": 类似情境下的反应}
- trigger_system：{"sensory": [...], "contextual": [...], "emotional": [...]}
- memory_distortion：{"exaggerated": 被夸大的部分, "downplayed": 被淡化的部分, "reason": 原因}`, label, p.Describe(), kind)
	return system, user
}
