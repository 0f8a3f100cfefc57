package main

const exampleMemory = `# Personal Memory File

## 🧑 Identity
- Name: Will Wade
- Pronouns: he/him
- Lives in: Manchester
- Works at: Ace Centre (Assistive Technology Specialist)

## 👥 People
- Lisa: wife, teacher, we have 2 children
- Daisy: slt, co-authored the AAC outcomes paper
- Keith Vertanen: collaborator, works at Michigan Tech, wears glasses

## 🏢 Workplaces
- Ace Centre (2010-2024)
- University of Dundee (2006-2010)

## 💬 Events & Memories
- "CHI 2019" → Presented our paper in Glasgow and met Keith
- "Family holiday" → Walked the coast in Cornwall with Lisa

## ❤️ Interests
- Speech technology, Open source, Cycling

## 📚 Phrases I Often Say
- "That sounds like a plan"
- "Could we explore that idea a bit more?"
`
