package config

// Built-in prompt templates. Profiles override any of them.
const (
	DefaultFilterPrompt = `Quickly judge whether this article looks relevant to the '{feed_profile}' topic.

Title: {title}
Description: {description}

Based ONLY on this information, give a score from 1 to 5:

1 = Completely irrelevant, discard
2 = Probably irrelevant, but not sure
3 = Might be relevant, worth investigating
4 = Probably relevant
5 = Clearly relevant and important

Be CONSERVATIVE: when in doubt, give the lower score.

Answer with the number only.`

	DefaultSummaryPrompt = `
Summarize the key points of this news article objectively in 2-4 sentences.
Identify the main topics covered.

Article:
{article_content}
`

	DefaultRatingPrompt = `
Analyze the following news summary and estimate its overall impact. Consider factors like geographic scope (local vs global), number of people affected, severity, and potential long-term consequences.

Rate the impact on a scale of 1 to 10, where:
1-2: Minor, niche, or local interest.
3-4: Notable event for a specific region or community.
5-6: Significant event with broader regional or moderate international implications.
7-8: Major event with significant international importance or wide-reaching effects.
9-10: Critical global event with severe, widespread, or potentially historic implications.

Summary:
"{summary}"

Output ONLY the integer number representing your rating (1-10).
`

	DefaultClusterAnalysisPrompt = `
These are summaries of potentially related news articles from a '{feed_profile}' context:

{cluster_summaries_text}

What is the core event or topic discussed? Summarize the key developments and significance in 3-5 sentences based *only* on the provided text. If the articles seem unrelated, state that clearly.
`

	DefaultSynthesisPrompt = `
You are writing a daily intelligence briefing using Markdown, specifically for the '{feed_profile}' category.
Synthesize the following analyzed news clusters into a coherent, high-level executive summary.
Start with the 2-3 most critical overarching themes based *only* on these inputs.
Then, provide concise bullet points summarizing key developments within the most significant clusters.
Maintain an objective, analytical tone relevant to the '{feed_profile}' context. Avoid speculation.

Analyzed News Clusters (Most significant first):
{cluster_analyses_text}
`
)
