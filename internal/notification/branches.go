package notification

import (
	"context"
	"errors"
	"fmt"

	"relay-service/internal/models"
	"relay-service/pkg/apperror"
)

const previewLength = 50

type resolution struct {
	actorID  string
	targetID string
	comment  *models.Comment
}

// branch is one entry of the dispatch table
type branch struct {
	missing      func(req Request) []string
	resolve      func(ctx context.Context, store Store, req Request) (resolution, error)
	suppressSelf bool
	compose      func(actor *models.UserProfile, req Request, res resolution) *models.Notification
}

func defaultBranches() map[string]branch {
	return map[string]branch{
		TypeLike: {
			missing:      requireFields(fieldPostID),
			resolve:      resolvePostOwner,
			suppressSelf: true,
			compose:      composeLike,
		},
		TypeComment: {
			missing:      missingForComment,
			resolve:      resolvePostOwner,
			suppressSelf: true,
			compose:      composeComment,
		},
		TypeFollow: {
			missing:      requireFields(fieldFollowerID, fieldFollowingID),
			resolve:      resolveFollow,
			suppressSelf: false,
			compose:      composeFollow,
		},
		TypeCommentLike: {
			missing:      requireFields(fieldPostID, fieldCommentID),
			resolve:      resolveCommentAuthor,
			suppressSelf: true,
			compose:      composeCommentLike,
		},
		TypeCommentReply: {
			missing:      requireFields(fieldPostID, fieldCommentID, fieldReplyID),
			resolve:      resolveCommentAuthor,
			suppressSelf: true,
			compose:      composeCommentReply,
		},
	}
}

type field struct {
	name string
	get  func(Request) string
}

var (
	fieldPostID      = field{"postId", func(r Request) string { return r.PostID }}
	fieldFollowerID  = field{"followerId", func(r Request) string { return r.FollowerID }}
	fieldFollowingID = field{"followingId", func(r Request) string { return r.FollowingID }}
	fieldCommentID   = field{"commentId", func(r Request) string { return r.CommentID }}
	fieldReplyID     = field{"replyId", func(r Request) string { return r.ReplyID }}

	fieldPostOwnerID    = field{"postOwnerId", func(r Request) string { return r.PostOwnerID }}
	fieldCommentContent = field{"commentContent", func(r Request) string { return r.CommentContent }}
)

func requireFields(fields ...field) func(Request) []string {
	return func(req Request) []string {
		var missing []string
		for _, f := range fields {
			if f.get(req) == "" {
				missing = append(missing, f.name)
			}
		}
		return missing
	}
}

// The explicit create_comment_notification path names the comment by id and
// resolves the owner from the post. Every other origin must carry the owner
// and the quoted content.
func missingForComment(req Request) []string {
	if req.Origin == OriginExplicit {
		return requireFields(fieldPostID, fieldCommentID)(req)
	}
	return requireFields(fieldPostID, fieldPostOwnerID, fieldCommentContent)(req)
}

func resolvePostOwner(ctx context.Context, store Store, req Request) (resolution, error) {
	if req.ActorID == "" {
		return resolution{}, apperror.Validation("%s notification has no actor", req.Type)
	}
	owner := req.PostOwnerID
	if owner == "" {
		var err error
		owner, err = store.FindPostOwner(ctx, req.PostID)
		if err != nil {
			if errors.Is(err, apperror.ErrNotFound) {
				return resolution{}, apperror.NotFound("post %s not found", req.PostID)
			}
			return resolution{}, fmt.Errorf("find post owner: %w", err)
		}
	}
	return resolution{actorID: req.ActorID, targetID: owner}, nil
}

// Follow is always cross-user; the follower is the actor on every origin.
func resolveFollow(_ context.Context, _ Store, req Request) (resolution, error) {
	return resolution{actorID: req.FollowerID, targetID: req.FollowingID}, nil
}

func resolveCommentAuthor(ctx context.Context, store Store, req Request) (resolution, error) {
	if req.ActorID == "" {
		return resolution{}, apperror.Validation("%s notification has no actor", req.Type)
	}
	c, err := store.FindComment(ctx, req.CommentID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return resolution{}, apperror.NotFound("comment %s not found", req.CommentID)
		}
		return resolution{}, fmt.Errorf("find comment: %w", err)
	}
	return resolution{actorID: req.ActorID, targetID: c.UserID, comment: c}, nil
}

func composeLike(actor *models.UserProfile, req Request, _ resolution) *models.Notification {
	data := map[string]any{"postId": req.PostID}
	if req.PostDescription != "" {
		data["postDescription"] = req.PostDescription
	}
	return &models.Notification{
		Type:    models.NotificationTypeLike,
		Title:   "New like!",
		Message: fmt.Sprintf("%s liked your post", actor.Username),
		Data:    data,
	}
}

// composeComment quotes the comment when its content is carried, as on the
// generic and stream paths. The explicit path points at the comment by id.
func composeComment(actor *models.UserProfile, req Request, _ resolution) *models.Notification {
	n := &models.Notification{
		Type:  models.NotificationTypeComment,
		Title: "New comment!",
	}
	if req.CommentContent != "" {
		n.Message = fmt.Sprintf("%s commented: \"%s\"", actor.Username, req.CommentContent)
		n.Data = map[string]any{"postId": req.PostID, "commentContent": req.CommentContent}
		return n
	}
	n.Message = fmt.Sprintf("%s commented on your post", actor.Username)
	n.Data = map[string]any{"postId": req.PostID, "commentId": req.CommentID}
	return n
}

func composeFollow(actor *models.UserProfile, req Request, _ resolution) *models.Notification {
	return &models.Notification{
		Type:    models.NotificationTypeFollow,
		Title:   "New follower!",
		Message: fmt.Sprintf("%s started following you", actor.Username),
		Data:    map[string]any{"followerId": req.FollowerID},
	}
}

func composeCommentLike(actor *models.UserProfile, req Request, res resolution) *models.Notification {
	return &models.Notification{
		Type:    models.NotificationTypeLike,
		Title:   "New like on your comment!",
		Message: fmt.Sprintf("%s liked your comment: \"%s\"", actor.Username, Preview(res.comment.Content)),
		Data:    map[string]any{"postId": req.PostID, "commentId": req.CommentID},
	}
}

func composeCommentReply(actor *models.UserProfile, req Request, res resolution) *models.Notification {
	return &models.Notification{
		Type:    models.NotificationTypeComment,
		Title:   "New reply to your comment!",
		Message: fmt.Sprintf("%s replied to your comment: \"%s\"", actor.Username, Preview(res.comment.Content)),
		Data:    map[string]any{"postId": req.PostID, "commentId": req.ReplyID},
	}
}

// Preview cuts s to its first 50 characters, marking the cut with "..."
func Preview(s string) string {
	runes := []rune(s)
	if len(runes) <= previewLength {
		return s
	}
	return string(runes[:previewLength]) + "..."
}
