package reddit

import (
	"encoding/json"
	"fmt"
	"strings"
)

// parseCommentListing decodes a comment listing into tree nodes and pagination
// stubs, registering every node in the submission's fullname index so later
// morechildren grafts can find their parents.
func (s *Submission) parseCommentListing(raw json.RawMessage) ([]*CommentNode, error) {
	// Reddit encodes an empty reply set as the empty string
	if len(raw) == 0 || string(raw) == `""` || string(raw) == "null" {
		return nil, nil
	}

	var listing listingEnvelope
	if err := json.Unmarshal(raw, &listing); err != nil {
		return nil, fmt.Errorf("failed to decode comment listing: %w", err)
	}
	return s.parseChildren(listing.Data.Children)
}

// parseChildren builds tree nodes from a listing's children
func (s *Submission) parseChildren(children []thing) ([]*CommentNode, error) {
	var nodes []*CommentNode
	for _, child := range children {
		switch child.Kind {
		case "t1":
			node, err := s.parseComment(child.Data)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, node)
		case "more":
			if err := s.queueMore(child.Data); err != nil {
				return nil, err
			}
		}
	}
	return nodes, nil
}

func (s *Submission) parseComment(raw json.RawMessage) (*CommentNode, error) {
	var data commentData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to decode comment: %w", err)
	}

	node := &CommentNode{
		ID:         data.ID,
		Author:     data.Author,
		Body:       data.Body,
		Score:      data.Score,
		CreatedUTC: data.CreatedUTC,
	}
	s.index[node.fullname()] = node

	replies, err := s.parseCommentListing(data.Replies)
	if err != nil {
		return nil, err
	}
	node.Replies = replies
	return node, nil
}

func (s *Submission) queueMore(raw json.RawMessage) error {
	var data moreData
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("failed to decode more stub: %w", err)
	}
	// "continue this thread" stubs carry no child ids; they mark replies
	// below the depth cutoff and are resolved by re-fetching the parent
	// comment's thread. Only comment parents can be continued.
	if len(data.Children) == 0 && !strings.HasPrefix(data.ParentID, "t1_") {
		return nil
	}
	s.pending = append(s.pending, &moreStub{
		parentFullname: data.ParentID,
		children:       data.Children,
	})
	return nil
}

// graft attaches flat morechildren results into the tree by parent fullname.
// New pagination stubs returned by the endpoint are queued for the next round.
func (s *Submission) graft(things []thing) error {
	for _, th := range things {
		switch th.Kind {
		case "t1":
			var data commentData
			if err := json.Unmarshal(th.Data, &data); err != nil {
				return fmt.Errorf("failed to decode grafted comment: %w", err)
			}
			node := &CommentNode{
				ID:         data.ID,
				Author:     data.Author,
				Body:       data.Body,
				Score:      data.Score,
				CreatedUTC: data.CreatedUTC,
			}
			s.index[node.fullname()] = node

			if data.ParentID == s.Fullname() {
				s.Comments = append(s.Comments, node)
			} else if parent, ok := s.index[data.ParentID]; ok {
				parent.Replies = append(parent.Replies, node)
			} else {
				// Parent never materialized; keep the subtree reachable
				s.Comments = append(s.Comments, node)
			}
		case "more":
			if err := s.queueMore(th.Data); err != nil {
				return err
			}
		}
	}
	return nil
}
