package publish

import (
	"fmt"
	"html"
	"strings"
)

const digestTimeFormat = "Mon, 2 Jan 15:04 MST"

// RenderDigest formats a batch of clusters as one HTML post with linked
// headlines grouped under a dated header.
func RenderDigest(digest Digest) string {
	if len(digest.Items) == 0 {
		return ""
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("<b>📰 News digest — %s</b>\n\n", digest.Now.Format(digestTimeFormat)))

	for _, item := range digest.Items {
		renderItem(&sb, item)
	}

	return strings.TrimRight(sb.String(), "\n")
}

// RenderReview formats a cluster as a moderation prompt for the review chat.
func RenderReview(item ClusterPayload) string {
	var sb strings.Builder

	sb.WriteString("<b>🟡 Review needed</b>\n")
	renderItem(&sb, item)

	return strings.TrimRight(sb.String(), "\n")
}

// RenderBreaking formats a single cluster as a standalone breaking post.
func RenderBreaking(item ClusterPayload) string {
	var sb strings.Builder

	sb.WriteString("<b>🔴 Breaking</b>\n")
	renderItem(&sb, item)

	return strings.TrimRight(sb.String(), "\n")
}

func renderItem(sb *strings.Builder, item ClusterPayload) {
	sb.WriteString(fmt.Sprintf("• <a href=\"%s\">%s</a>", html.EscapeString(item.URL), html.EscapeString(item.Headline)))

	if item.Source != "" {
		sb.WriteString(fmt.Sprintf(" — %s", html.EscapeString(item.Source)))
	}

	if item.MemberCount > 1 {
		sb.WriteString(fmt.Sprintf(" (%d sources)", item.MemberCount))
	}

	sb.WriteString("\n")

	if len(item.Topics) > 0 {
		sb.WriteString(fmt.Sprintf("  <i>%s</i>\n", html.EscapeString(strings.Join(item.Topics, ", "))))
	}
}
