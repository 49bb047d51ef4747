package ai

const ExtractSystemPrompt = `You read novels and report who the characters are and how they relate. Answer only with JSON matching the requested schema.`

const ExtractRelationsPrompt = `
# Task Context
You are an assistant that reads one chapter of a novel and lists the characters that appear in it and the relationships between them.

# Background Data
Chapter number: %d

Chapter text:
"""
%s
"""

# Detailed Task Description & Rules
- List every named character that appears in the chapter. Use the fullest name the chapter gives.
- List relationships only between characters from your list.
- Only report relationships that this chapter itself shows or states. Do not use knowledge of later chapters or of other books.
- Use short upper case relationship types such as ALLY, ENEMY, FAMILY, ROMANCE, MENTOR, SERVES, RIVAL or MEETS.
- The direction matters for asymmetric types: for MENTOR and SERVES the source is the mentor or the master.
- Give each relationship a strength between 0 and 1.

# Output Formatting
Return a JSON object with this structure:
{
  "characters": ["<name>", "..."],
  "relationships": [
    {"source": "<name>", "target": "<name>", "type": "<TYPE>", "strength": 0.8}
  ]
}
`

const DedupePrompt = `
# Task Context
You are an assistant that merges different names of the same character in a novel.

# Background Data
%s

# Detailed Task Description & Rules
- Group names that refer to the same person, for example a full name and a given name, a title and a name, or a nickname.
- Characters that merely share a family name are different people.
- Choose the fullest common form as the canonical name of each group.
- Only list groups with two or more names.

# Output Formatting
Return a JSON object with this structure:
{
  "duplicates": [
    {
      "canonicalName": "<chosen final name>",
      "entities": ["<name1>", "<name2>"]
    }
  ]
}
`
