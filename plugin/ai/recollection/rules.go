package recollection

var fusionRules = map[Kind]string{
	KindEducation:   "体现学习方式与如今思维方式之间的关联：当年怎么学，影响了现在怎么想。",
	KindWork:        "体现职业技能与价值观的互动：解决问题的手法背后是怎样的职业信念。",
	KindFamily:      "体现家庭关系如何塑造了今天的性格：家人之间的相处方式留下了什么。",
	KindHobby:       "体现爱好带来的满足感和自我认同：为什么这件事让自己觉得是自己。",
	KindTrauma:      "体现创伤之后形成的防御方式：那件事如何变成了今天的应对习惯。",
	KindAchievement: "体现成功的标准与价值观一致：自己认定的成功为什么算成功。",
	KindSocial:      "体现社交习惯的来由：那段经历如何决定了现在与人相处的方式。",
	KindGrowth:      "体现关键转变的内在逻辑：事情的经过怎样推动了认知或行为的改变。",
	KindSelf:        "体现自我认知的来源：这段独处的经历让自己明白了什么。",
}

const generalFusionRule = "自然融入其中的时间、情绪变化和对现在行为的影响。"

// FusionRule returns the instruction for weaving a recollection of kind k
// into a reply. Unknown kinds get the general rule.
func (k Kind) FusionRule() string {
	if rule, ok := fusionRules[k]; ok {
		return rule
	}
	return generalFusionRule
}
