package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hrygo/personaflow/plugin/ai/persona"
	"github.com/hrygo/personaflow/plugin/ai/recollection"
)

// amplifiedLengthWarning is appended when the first fused draft is too short.
const amplifiedLengthWarning = "\n⚠️ 上一稿太短了！必须写进当时的年龄、情绪的前后变化、以及它如何影响了现在的你，篇幅不少于250字。"

func classifierPrompt(p *persona.Persona, utterance string) (system, user string) {
	system = fmt.Sprintf(`你负责判断对话意图：回答用户这句话时，%s是否需要调取自己的亲身经历。

角色：%s，%d岁，%s。

需要（YES）：问到角色过去发生的具体事情、某个习惯或态度的由来、某段经历里的感受。
不需要（NO）：打招呼、闲聊、问角色当下的喜好或设定、常识性问题。

只回答 YES 或 NO，不要解释。`, p.Name, p.Name, p.Age, p.Occupation)
	user = fmt.Sprintf("用户的话：%s\n判断（YES/NO）：", utterance)
	return system, user
}

func reflexPrompt(p *persona.Persona, utterance string, history []Turn) (system, user string) {
	system = fmt.Sprintf(`你是%s。先给出一句下意识的快速回应：1-2句，不超过50字。
语言风格：%s
不要讲任何具体的往事细节，后面会有机会慢慢说。`, p.Name, styleOf(p))
	user = renderHistory(history) + fmt.Sprintf("用户：%s\n你的简短回应：", utterance)
	return system, user
}

func directPrompt(p *persona.Persona, utterance string, history []Turn) (system, user string) {
	system = fmt.Sprintf(`你是%s，请完全以这个身份回答，100-150字，贴合人设和说话方式。

人设：
%s`, p.Name, p.Describe())
	user = renderHistory(history) + fmt.Sprintf("用户：%s\n你的回答：", utterance)
	return system, user
}

func noMemoryPrompt(p *persona.Persona, utterance, reflex string) (system, user string) {
	system = fmt.Sprintf(`你是%s。用户问到的事情你一时想不起来了。
请自然地接话，50-100字，语言风格：%s。
可以用生活习惯来解释，比如不太回想过去、时间久了记不清。
不要出现“记忆”“系统”“数据”这类字眼。
要和你刚才说的话衔接上：%s`, p.Name, styleOf(p), reflex)
	user = fmt.Sprintf("用户：%s\n你刚才说：%s\n你的回应：", utterance, reflex)
	return system, user
}

func supplementPrompt(p *persona.Persona, utterance string, history []Turn, reflex string, memories []*recollection.Recollection) (system, user string) {
	system = fmt.Sprintf(`你是%s。根据下面的人设和往事材料，把刚才那句简短回应展开成一段完整的讲述。

人设：
%s
讲述要求：
1. 往事的时间要落到实处：参考当时的年龄和人生阶段，比如“我二十五岁刚工作那会儿”。
2. 情绪要有变化：从当时的感受写到后来回头看的体会。
3. 要说清这段经历对现在的你有什么影响，比如养成了什么习惯、态度有什么改变。
4. 尽量带上画面、声音、气味之类的感官细节。
5. 像平常聊天时自然想起往事那样讲，不要提到“记忆”这个词，也不要出现任何字段名或英文键名。
6. 和刚才的简短回应呼应，但要重新组织语言，不要简单重复：%s
7. 篇幅不少于250字，按“场景→经过→对现在的影响”展开。`, p.Name, p.Describe(), reflex)

	var sb strings.Builder
	sb.WriteString(renderHistory(history))
	sb.WriteString(fmt.Sprintf("用户现在的问题：%s\n你刚才的简短回应：%s\n\n往事材料：\n", utterance, reflex))
	for i, m := range memories {
		sb.WriteString(fmt.Sprintf("\n【第%d段】\n融入方式：%s\n完整内容：\n%s\n", i+1, m.Kind.FusionRule(), recordJSON(m)))
	}
	sb.WriteString(fmt.Sprintf("\n请以%s的身份开始讲述：", p.Name))
	return system, sb.String()
}

// recordJSON renders the full structured record. Relevance is query-time only and left out.
func recordJSON(m *recollection.Recollection) string {
	data, err := json.MarshalIndent(m.Persistable(), "", "  ")
	if err != nil {
		return m.Document()
	}
	return string(data)
}

func styleOf(p *persona.Persona) string {
	parts := make([]string, 0, 2)
	if s := strings.TrimSpace(p.LanguageStyle); s != "" {
		parts = append(parts, s)
	}
	if s := strings.TrimSpace(p.SpeechStyle); s != "" {
		parts = append(parts, s)
	}
	if len(parts) == 0 {
		return "自然口语"
	}
	return strings.Join(parts, "；")
}

func renderHistory(history []Turn) string {
	if len(history) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, t := range history {
		speaker := "用户"
		if t.Role == RoleAgent {
			speaker = "你"
		}
		sb.WriteString(speaker)
		sb.WriteString("：")
		sb.WriteString(t.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}

// lastTurns returns at most n trailing turns.
func lastTurns(history []Turn, n int) []Turn {
	if n <= 0 {
		return nil
	}
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}
