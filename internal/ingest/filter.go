package ingest

import "github.com/MarkoPoloResearchLab/reviu/internal/model"

// ShouldMaterialize decides whether an inbound Figma comment becomes a Comment.
// A missing preference record syncs everything. SyncOnlyMentions is stored but
// does not take part in the decision yet.
func ShouldMaterialize(preference *model.FigmaSyncPreference, resolved bool) bool {
	if preference == nil {
		return true
	}
	if preference.SyncAllComments {
		return true
	}
	return preference.SyncUnresolvedOnly && !resolved
}
