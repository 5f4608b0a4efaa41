// Command mathagent asks the math tutor one question from the terminal.
//
//	mathagent -llm llm.yaml "What is 123 * 456?"
//	mathagent -llm llm.yaml -resume chat.yaml -format yaml "And divided by 2?"
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/CodeSistency/agentTemplate/assistants"
	"github.com/CodeSistency/agentTemplate/callbacks"
	"github.com/CodeSistency/agentTemplate/chatmodel"
	"github.com/CodeSistency/agentTemplate/encoding"
	"github.com/CodeSistency/agentTemplate/gateway"
	"github.com/CodeSistency/agentTemplate/pkg/llmfactory"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	"github.com/joho/godotenv"
)

type options struct {
	llmConfig string
	assistant string
	toolMode  string
	format    string
	resume    string
	verbose   bool
	stats     bool
}

func main() {
	var o options
	flag.StringVar(&o.llmConfig, "llm", "", "LLM providers configuration file")
	flag.StringVar(&o.assistant, "assistant", gateway.DefaultAssistant, "assistant name used to select the model")
	flag.StringVar(&o.toolMode, "tools", gateway.ToolModeDirect, "tool mode: direct or transport")
	flag.StringVar(&o.format, "format", "", "print the transcript as json, yaml or toml instead of the answer")
	flag.StringVar(&o.resume, "resume", "", "transcript file of the conversation to continue")
	flag.BoolVar(&o.verbose, "verbose", false, "print the loop transitions")
	flag.BoolVar(&o.stats, "stats", false, "print the run scratchpad and stats")
	flag.Parse()

	question := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if question == "" {
		fmt.Fprintln(os.Stderr, "usage: mathagent [flags] <question>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	xlog.SetFormatter(xlog.NewStringFormatter(os.Stderr))
	xlog.SetGlobalLogLevel(xlog.WARNING)

	if err := run(o, question); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}

func run(o options, question string) error {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var enc encoding.Mode
	if o.format != "" {
		// fail before calling the model
		if _, err := encoding.NewEncoder(o.format); err != nil {
			return err
		}
		enc = o.format
	}

	state, err := resume(o.resume)
	if err != nil {
		return err
	}

	f, err := llmfactory.Load(o.llmConfig)
	if err != nil {
		return errors.WithMessage(err, "failed to load LLM configuration")
	}
	llm, err := f.AssistantModel(o.assistant)
	if err != nil {
		return errors.WithMessage(err, "failed to create model")
	}

	invoker, err := gateway.NewInvoker(ctx, gateway.ToolsConfig{Mode: o.toolMode}, gateway.NewToolServer())
	if err != nil {
		return err
	}

	rec := callbacks.NewRecorder()
	cb := callbacks.NewFanout(rec)
	if o.verbose {
		cb.Add(callbacks.NewPrinter(os.Stderr, callbacks.ModeVerbose))
	}
	sp := callbacks.NewScratchpad(callbacks.ModeDefault)
	if o.stats {
		cb.Add(sp)
	}

	agent, err := gateway.NewAgent(llm, invoker, 0, assistants.WithCallback(cb))
	if err != nil {
		return err
	}

	ctx = chatmodel.WithChatContext(ctx, chatmodel.NewChatContext(state.SessionID, ""))
	sp.StartRun(ctx)
	final, runErr := agent.Ask(ctx, state, question)
	if o.stats {
		_, pad := sp.EndRun(ctx)
		_, _ = os.Stderr.Write(pad)
	}

	if enc == "" {
		if runErr != nil {
			return runErr
		}
		fmt.Println(final.FinalAnswer())
		return nil
	}

	resp := &chatmodel.ChatResponse{
		SessionID: state.SessionID,
		Events:    rec.Events(),
	}
	if final != nil {
		resp.Answer = final.FinalAnswer()
		resp.Messages = final.Messages
	}
	if runErr != nil {
		resp.Error = runErr.Error()
	}
	body, err := encoding.Encode(enc, resp)
	if err != nil {
		return err
	}
	fmt.Println(string(body))
	return runErr
}

// resume loads the conversation from a transcript file,
// the format is selected by the file extension
func resume(file string) (*chatmodel.Conversation, error) {
	if file == "" {
		return chatmodel.NewConversation(""), nil
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	t, err := encoding.Decode(encoding.ModeFromFilename(file), data)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to decode %s", file)
	}
	return t.Conversation()
}
