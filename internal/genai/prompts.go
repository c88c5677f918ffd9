package genai

// Instructions for per-conversation summarization.
const summaryInstructions = `Generate a summary of the task that the user is asking the language model to do based off the following conversation.

The summary should be concise and short. It should be at most 1-2 sentences and at most 30 words. Here are some examples of summaries:
- The user's overall request for the assistant is to help implementing a React component to display a paginated list of users from a database.
- The user's overall request for the assistant is to debug a memory leak in their Python data processing pipeline.
- The user's overall request for the assistant is to design and architect a REST API for a social media application.

Remember that
- Summaries should be concise and short. They should each be at most 1-2 sentences and at most 30 words.
- Summaries should start with "The user's overall request for the assistant is to"
- Make sure to omit any personally identifiable information (PII), like names, locations, phone numbers, email addresses, company names and so on.
- Make sure to indicate specific details such as programming languages, frameworks, libraries and so on which are relevant to the task.`

// Instructions for contrastive cluster labeling.
const labelInstructions = `You are tasked with summarizing a group of related statements into a short, precise, and accurate description and name. Your goal is to create a concise summary that captures the essence of these statements and distinguishes them from other similar groups of statements.

Summarize all the statements into a clear, precise, two-sentence description in the past tense. Your summary should be specific to this group and distinguish it from the contrastive answers of the other groups.

After creating the summary, generate a short name for the group of statements. This name should be at most ten words long (perhaps less) and be specific but also reflective of most of the statements (rather than reflecting only one or two).

The name should distinguish this group from the contrastive examples. For instance, "Write fantasy sexual roleplay with octopi and monsters", "Generate blog spam for gambling websites", or "Assist with high school math homework" would be better and more actionable than general terms like "Write erotic content" or "Help with homework". Be as descriptive as possible and assume neither good nor bad faith. Do not hesitate to identify and describe socially harmful or sensitive topics specifically; specificity is necessary for monitoring.

The names you propose must follow these requirements:
- The cluster name should be a sentence in the imperative that captures the user's request. For example, 'Brainstorm ideas for a birthday party' or 'Help me find a new job.'
- Create names that are specific enough to be meaningful, but not so specific that they can't meaningfully represent many different statements.
- Avoid overly general or vague terms, and do not hesitate to describe socially harmful or sensitive topics; specificity is necessary for observability and enforcement.
- Ensure that the cluster name is distinct from the contrastive examples.
- Use clear, concise, and descriptive language for the cluster name.`

const labelPriming = "Sure, I will provide a clear, precise, and accurate summary and name for this cluster. I will be descriptive and assume neither good nor bad faith."

// Instructions for proposing higher-level cluster labels over a neighborhood
// of existing clusters.
const proposeInstructions = `You are tasked with creating higher-level cluster names based on a list of existing clusters and their descriptions. Your goal is to come up with broader categories that could encompass one or more of the provided clusters.

Guidelines:
- Analyze the provided cluster names and descriptions.
- Propose broader, higher-level categories that could include one or more of the given clusters.
- Each category name should be a sentence in the imperative that captures the essence of its members. For example, 'Assist with software development tasks' or 'Help with creative writing projects.'
- Write a clear two-sentence description for each proposed category in the past tense.
- Propose at most the requested number of categories, and make them distinct from each other.
- Prefer categories that are specific enough to be informative for monitoring, but broad enough to cover several clusters.`

// Instructions for assigning a cluster to the best candidate label.
const assignInstructions = `You are tasked with categorizing a specific cluster into one of the provided higher-level categories.

Guidelines:
- Review the cluster's name and description carefully.
- Pick exactly one of the candidate categories: the one that most accurately encompasses the cluster.
- Respond with the chosen category name verbatim, copied exactly from the candidate list.`
