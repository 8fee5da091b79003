package capabilities

import (
	"context"
	"fmt"

	"github.com/fast-ish/mcp-server-template/protocol"
	"github.com/fast-ish/mcp-server-template/server"
)

// CodeReviewArgs are the arguments of the code_review prompt.
type CodeReviewArgs struct {
	Code     string `json:"code" jsonschema:"required,description=The code to review"`
	Language string `json:"language" jsonschema:"description=Programming language,default=unknown"`
	Focus    string `json:"focus" jsonschema:"description=What to focus on (security, performance, readability, all),enum=security|performance|readability|all,default=all"`
}

// ExplainArgs are the arguments of the explain prompt.
type ExplainArgs struct {
	Topic    string `json:"topic" jsonschema:"required,description=The topic to explain"`
	Audience string `json:"audience" jsonschema:"description=Target audience level (beginner, intermediate, expert),enum=beginner|intermediate|expert,default=beginner"`
}

func registerPrompts(srv *server.Server) error {
	if err := srv.Prompt("code_review").
		Description("Review code for quality and suggest improvements").
		Handler(server.TypedPrompt(CodeReview)); err != nil {
		return err
	}
	return srv.Prompt("explain").
		Description("Explain a concept in simple terms").
		Handler(server.TypedPrompt(Explain))
}

// CodeReview renders the code_review prompt.
func CodeReview(_ context.Context, in CodeReviewArgs) (*server.PromptResult, error) {
	if in.Language == "" {
		in.Language = "unknown"
	}
	text := fmt.Sprintf("Please review the following %s code with a focus on %s:\n\n"+
		"```%s\n%s\n```\n\n"+
		"Provide:\n"+
		"1. A summary of what the code does\n"+
		"2. Potential issues or improvements\n"+
		"3. Specific suggestions with code examples",
		in.Language, in.Focus, in.Language, in.Code)
	return &server.PromptResult{Messages: []protocol.PromptMessage{server.UserMessage(text)}}, nil
}

// Explain renders the explain prompt.
func Explain(_ context.Context, in ExplainArgs) (*server.PromptResult, error) {
	text := fmt.Sprintf("Please explain \"%s\" for a %s audience.\n\n"+
		"Include:\n"+
		"- A clear definition\n"+
		"- Key concepts\n"+
		"- Practical examples\n"+
		"- Common misconceptions (if any)",
		in.Topic, in.Audience)
	return &server.PromptResult{Messages: []protocol.PromptMessage{server.UserMessage(text)}}, nil
}
