package service

import (
	"context"
	"fmt"

	"monch/internal/model"
	"monch/internal/repository"
)

// Projector builds the viewer-relative representations of posts and users.
// Every counter and viewer flag is loaded with one batch query over the
// whole set of collected ids.
type Projector struct {
	postRepo   repository.PostRepository
	likeRepo   repository.LikeRepository
	userRepo   repository.UserRepository
	followRepo repository.FollowRepository
	maxDepth   int
}

func NewProjector(
	postRepo repository.PostRepository,
	likeRepo repository.LikeRepository,
	userRepo repository.UserRepository,
	followRepo repository.FollowRepository,
	maxDepth int,
) *Projector {
	return &Projector{
		postRepo:   postRepo,
		likeRepo:   likeRepo,
		userRepo:   userRepo,
		followRepo: followRepo,
		maxDepth:   maxDepth,
	}
}

// MaxDepth is the reply tree depth used by detail and thread views.
func (p *Projector) MaxDepth() int {
	return p.maxDepth
}

func (p *Projector) ProjectPost(ctx context.Context, post *model.Post, viewerID *int64, depth int) (*model.PostView, error) {
	views, err := p.ProjectPosts(ctx, []model.Post{*post}, viewerID, depth)
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

// ProjectPosts projects posts with their reply subtrees loaded down to
// depth levels. The tree is walked breadth first with one query per level.
// Nodes on the last level keep replies_count and are flagged truncated
// when they have replies that were not loaded.
func (p *Projector) ProjectPosts(ctx context.Context, posts []model.Post, viewerID *int64, depth int) ([]*model.PostView, error) {
	roots := make([]*model.PostView, len(posts))
	for i := range posts {
		roots[i] = newPostView(&posts[i])
	}
	if len(roots) == 0 {
		return roots, nil
	}

	all := append([]*model.PostView(nil), roots...)
	frontier := roots
	for level := 0; level < depth && len(frontier) > 0; level++ {
		replies, err := p.postRepo.GetReplies(ctx, uniqueViewIDs(frontier))
		if err != nil {
			return nil, fmt.Errorf("load replies: %w", err)
		}

		byParent := make(map[int64][]model.Post)
		for _, r := range replies {
			byParent[*r.ParentPostID] = append(byParent[*r.ParentPostID], r)
		}

		var next []*model.PostView
		for _, node := range frontier {
			children := byParent[node.ID]
			node.Replies = make([]*model.PostView, 0, len(children))
			for i := range children {
				child := newPostView(&children[i])
				node.Replies = append(node.Replies, child)
				next = append(next, child)
			}
			node.RepliesCount = len(node.Replies)
		}
		all = append(all, next...)
		frontier = next
	}

	// The frontier was not expanded: count its replies instead.
	counts, err := p.postRepo.CountReplies(ctx, uniqueViewIDs(frontier))
	if err != nil {
		return nil, fmt.Errorf("count replies: %w", err)
	}
	for _, node := range frontier {
		node.RepliesCount = counts[node.ID]
		node.RepliesTruncated = node.RepliesCount > 0
	}

	if err := p.fillCounters(ctx, all, viewerID); err != nil {
		return nil, err
	}
	return roots, nil
}

func (p *Projector) fillCounters(ctx context.Context, views []*model.PostView, viewerID *int64) error {
	ids := uniqueViewIDs(views)

	likes, err := p.likeRepo.CountByPosts(ctx, ids)
	if err != nil {
		return fmt.Errorf("count likes: %w", err)
	}

	var refIDs []int64
	seen := make(map[int64]struct{})
	for _, v := range views {
		for _, ref := range []*int64{v.ParentPost, v.RepostOf} {
			if ref == nil {
				continue
			}
			if _, ok := seen[*ref]; !ok {
				seen[*ref] = struct{}{}
				refIDs = append(refIDs, *ref)
			}
		}
	}
	refs, err := p.postRepo.GetRefs(ctx, refIDs)
	if err != nil {
		return fmt.Errorf("load referenced posts: %w", err)
	}

	liked := map[int64]bool{}
	reposts := map[int64]int64{}
	if viewerID != nil {
		if liked, err = p.likeRepo.CheckLikes(ctx, *viewerID, ids); err != nil {
			return fmt.Errorf("check likes: %w", err)
		}
		if reposts, err = p.postRepo.GetViewerReposts(ctx, *viewerID, ids); err != nil {
			return fmt.Errorf("check reposts: %w", err)
		}
	}

	for _, v := range views {
		v.Likes = likes[v.ID]
		v.LikedByUser = liked[v.ID]
		if repostID, ok := reposts[v.ID]; ok {
			v.RepostedByUser = true
			v.UserRepostID = &repostID
		}
		if v.ParentPost != nil {
			if ref, ok := refs[*v.ParentPost]; ok {
				v.ParentPostDetail = &ref
			}
		}
		if v.RepostOf != nil {
			if ref, ok := refs[*v.RepostOf]; ok {
				v.RepostOfDetail = &ref
			}
		}
	}
	return nil
}

func (p *Projector) ProjectUser(ctx context.Context, user *model.User, viewerID *int64) (*model.UserView, error) {
	views, err := p.ProjectUsers(ctx, []model.User{*user}, viewerID)
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

// ProjectUsers adds counters and the viewer's follow state. is_following
// is always false for anonymous viewers and for the viewer's own profile.
func (p *Projector) ProjectUsers(ctx context.Context, users []model.User, viewerID *int64) ([]*model.UserView, error) {
	views := make([]*model.UserView, len(users))
	if len(users) == 0 {
		return views, nil
	}

	ids := make([]int64, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}

	stats, err := p.userRepo.GetStats(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load user stats: %w", err)
	}

	following := map[int64]bool{}
	if viewerID != nil {
		if following, err = p.followRepo.CheckFollows(ctx, *viewerID, ids); err != nil {
			return nil, fmt.Errorf("check follows: %w", err)
		}
	}

	for i := range users {
		u := &users[i]
		s := stats[u.ID]
		views[i] = &model.UserView{
			ID:             u.ID,
			Username:       u.Username,
			DisplayName:    u.DisplayName,
			Bio:            u.Bio,
			AvatarURL:      u.AvatarURL,
			FollowersCount: s.FollowersCount,
			FollowingCount: s.FollowingCount,
			PostsCount:     s.PostsCount,
			IsFollowing:    viewerID != nil && *viewerID != u.ID && following[u.ID],
			CreatedAt:      u.CreatedAt,
		}
	}
	return views, nil
}

func newPostView(p *model.Post) *model.PostView {
	media := p.Media
	if media == nil {
		media = []model.PostMedia{}
	}
	return &model.PostView{
		ID:         p.ID,
		User:       p.Author,
		Content:    p.Content,
		CreatedAt:  p.CreatedAt,
		ParentPost: p.ParentPostID,
		RepostOf:   p.RepostOfID,
		Media:      media,
		Replies:    []*model.PostView{},
	}
}

func uniqueViewIDs(views []*model.PostView) []int64 {
	seen := make(map[int64]struct{}, len(views))
	ids := make([]int64, 0, len(views))
	for _, v := range views {
		if _, ok := seen[v.ID]; ok {
			continue
		}
		seen[v.ID] = struct{}{}
		ids = append(ids, v.ID)
	}
	return ids
}
