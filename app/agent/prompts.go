package agent

import (
	"fmt"
	"strings"

	"ragagent/config"
)

const basePrompt = `You are an assistant for developers working with LangGraph and LangChain.

## Answer only from search results
Everything you state must come from the results of your tools.
- Do not rely on knowledge outside the search results.
- Do not invent code examples that are not in the sources.
- If the search finds nothing useful, say: "I don't have information about this in my documentation sources."

%s

## How to work
1. Work out what the user is asking and what you need to find.
2. Call the tools with specific, targeted queries. Several different queries are better than one broad one.
3. If results score below 0.5, try other search terms.

## Research guidance
A message containing "NEED MORE RESEARCH" or "SEARCH FOR:" lists missing information and the queries to run.
When you receive one, call the tools with each suggested query right away instead of answering in text.`

const toolsOffline = `## Tools
- search_docs: the local documentation index`

const toolsOnline = `## Tools (use both)
1. search_docs: the local documentation index (concepts, API references)
2. web_search: live web search (recent changes, examples, tutorials)

Do not skip web_search just because search_docs returned results.`

// SystemPrompt is the tool-calling prompt for the given mode.
func SystemPrompt(mode config.Mode) string {
	if mode == config.ModeOnline {
		return fmt.Sprintf(basePrompt, toolsOnline)
	}
	return fmt.Sprintf(basePrompt, toolsOffline)
}

const SynthesisSystem = `You are an assistant for developers working with LangGraph and LangChain.

Answer only from the search results in this conversation. Do not add outside knowledge.
If the results do not contain the answer, say: "I don't have information about this in my documentation sources."

Keep the answer concise (300 to 500 words) and direct.`

const assessmentTemplate = `Assess whether the research so far answers the user's question. This is iteration %d of %d; %d remain.

If the search results are sufficient, write the final answer now.

Only if important parts of the question are unanswered and you have new queries that were not tried yet,
start your reply with "NEED MORE RESEARCH" followed by:

MISSING INFORMATION:
- what is missing

SEARCH FOR:
- "query 1"
- "query 2"`

// AssessmentPrompt asks whether the gathered evidence is sufficient.
func AssessmentPrompt(iteration, maxIterations int) string {
	return fmt.Sprintf(assessmentTemplate, iteration, maxIterations, maxIterations-iteration)
}

const answerDefinition = `Write the final answer to the user's latest question using only the search results above.

Match the kind of question:
- "What is X?": explain X from the sources, with a code example only if one appears in them.
- "X vs Y": compare them point by point and end with a one-sentence summary.
- "How do I X?": give numbered steps.
If you can only partly answer, say what the sources cover and what they do not.

End with the sources you used as markdown links:
**Sources:**
- [Title](url)`

const limitNote = `Research is finished; no more searches are possible. Answer with what was found.`

// AnswerPrompt is the final synthesis instruction. forced marks a turn stopped by a limit.
func AnswerPrompt(forced bool) string {
	if forced {
		return limitNote + "\n\n" + answerDefinition
	}
	return answerDefinition
}

var researchIndicators = []string{
	"NEED MORE RESEARCH",
	"MISSING INFORMATION",
	"CONTINUE RESEARCH",
	"SEARCH FOR:",
}

// NeedsMoreResearch reports whether an assessment asks for another research round.
func NeedsMoreResearch(assessment string) bool {
	upper := strings.ToUpper(assessment)
	for _, ind := range researchIndicators {
		if strings.Contains(upper, ind) {
			return true
		}
	}
	return false
}
