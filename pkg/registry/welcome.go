package registry

// welcomeTitle and welcomeContent seed the catalog when storage holds
// neither a catalog nor legacy content.
const welcomeTitle = "Welcome"

const welcomeContent = `[
  {
    "type": "heading",
    "props": { "level": 1 },
    "content": [
      { "type": "text", "text": "Welcome to ", "styles": {} },
      { "type": "text", "text": "GoNote", "styles": { "textColor": "yellow" } }
    ]
  },
  {
    "type": "paragraph",
    "content": "This is a minimal block editor. Start writing by clicking here or using the slash command."
  },
  {
    "type": "heading",
    "props": { "level": 2 },
    "content": "Features"
  },
  {
    "type": "bulletListItem",
    "content": [
      { "type": "text", "text": "Rich text editing with ", "styles": {} },
      { "type": "text", "text": "formatting", "styles": { "bold": true } }
    ]
  },
  {
    "type": "bulletListItem",
    "content": "Multiple documents in the sidebar"
  },
  {
    "type": "bulletListItem",
    "content": "Export to JSON, Markdown, or HTML"
  },
  {
    "type": "bulletListItem",
    "content": "QR code sharing between devices"
  },
  {
    "type": "heading",
    "props": { "level": 2 },
    "content": "Getting Started"
  },
  {
    "type": "numberedListItem",
    "content": "Create a new page using the \"New page\" button in the sidebar"
  },
  {
    "type": "numberedListItem",
    "content": "Type \"/\" to see all available commands"
  },
  {
    "type": "numberedListItem",
    "content": "Use the share icon in the header to generate a QR code"
  }
]`
