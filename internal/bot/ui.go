package bot

import (
	"fmt"

	"newsinsight/internal/markdown"
)

const welcomeTemplate = `🤖 *Welcome to NewsInsight\!*

Your chat ID is ` + "`%d`" + `\.

%s`

func welcomeText(chatID int64) string {
	hint := markdown.EscapeV2("Paste it into Settings on the dashboard and enable the digest " +
		"to receive summaries of newly analyzed articles after every hourly run.")

	return fmt.Sprintf(welcomeTemplate, chatID, hint)
}
