package bridge

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/TheMichaelB/shelfkey/internal/events"
	"github.com/TheMichaelB/shelfkey/internal/models"
)

// Command names accepted in request frames.
const (
	CmdGetLibrary      = "get_library"
	CmdDecrypt         = "decrypt"
	CmdGetTempBookPath = "get_temp_book_path"
)

// Request is a frame sent by the frontend.
type Request struct {
	ID      string          `json:"id"`
	Command string          `json:"command"`
	Args    json.RawMessage `json:"args,omitempty"`
}

// Response answers the request with the same ID.
type Response struct {
	ID     string `json:"id"`
	Result any    `json:"result"`
}

// DecryptArgs are the arguments of CmdDecrypt.
type DecryptArgs struct {
	KeyPath    string `json:"keyPath"`
	FilePath   string `json:"filePath"`
	TargetPath string `json:"targetPath"`
}

// TempPathArgs are the arguments of CmdGetTempBookPath.
type TempPathArgs struct {
	BookID  string `json:"bookId"`
	OwnerID string `json:"ownerId"`
	Format  string `json:"format"`
}

// Dispatch runs one request and waits for its envelope.
func (b *Bridge) Dispatch(ctx context.Context, req Request) Response {
	ctx = events.WithCommand(ctx, req.Command)
	events.FromContext(ctx).Debug("Dispatching")

	resp := Response{ID: req.ID}

	switch req.Command {
	case CmdGetLibrary:
		resp.Result = b.getLibrary(ctx).Await(ctx)

	case CmdDecrypt:
		var args DecryptArgs
		if err := decodeArgs(req, &args); err != nil {
			resp.Result = models.Fail[models.Void](err.Error())
			break
		}
		resp.Result = b.decrypt(ctx, args.KeyPath, args.FilePath, args.TargetPath).Await(ctx)

	case CmdGetTempBookPath:
		var args TempPathArgs
		if err := decodeArgs(req, &args); err != nil {
			resp.Result = models.Fail[string](err.Error())
			break
		}
		resp.Result = b.tempBookPath(ctx, args.BookID, args.OwnerID, args.Format).Await(ctx)

	default:
		resp.Result = models.Fail[models.Void](fmt.Sprintf("unknown command %q", req.Command))
	}

	return resp
}

func decodeArgs(req Request, v any) error {
	if len(req.Args) == 0 {
		return fmt.Errorf("%s: missing args", req.Command)
	}
	if err := json.Unmarshal(req.Args, v); err != nil {
		return fmt.Errorf("%s: invalid args: %w", req.Command, err)
	}
	return nil
}
