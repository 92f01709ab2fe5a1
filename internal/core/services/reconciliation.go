package services

import (
	"sort"

	"telegram-sync-reconciler/internal/domain"
)

// Reconcile сравнивает объявленный состав папки с фактически полученными диалогами.
//
// Точный сигнал дает MissingChatIDs: идентификаторы из объявленного состава, которых
// нет среди полученных диалогов. Он вычисляется, только если состав папки известен.
// CountDelta (объявлено минус получено) сохраняется как отдельный, более слабый
// сигнал: дубли и объединенные записи дают по нему ложные расхождения.
//
// Функция чистая: одинаковые входы дают одинаковый отчет.
func Reconcile(folder domain.Folder, dialogs []domain.Dialog) domain.ReconciliationReport {
	report := domain.ReconciliationReport{
		FolderID:        folder.ID,
		Title:           folder.Title,
		ExpectedCount:   folder.DeclaredDialogCount,
		ActualCount:     len(dialogs),
		MissingChatIDs:  []string{},
		ExtraChatIDs:    []string{},
		MembershipKnown: folder.HasDeclaredChatIDs(),
	}
	report.CountDelta = report.ExpectedCount - report.ActualCount

	if !report.MembershipKnown {
		return report
	}

	actual := make(map[string]struct{}, len(dialogs))
	for _, d := range dialogs {
		if d.ChatID != "" {
			actual[d.ChatID] = struct{}{}
		}
	}

	declared := make(map[string]struct{}, len(folder.DeclaredChatIDs))
	for _, id := range folder.DeclaredChatIDs {
		if _, seen := declared[id]; seen {
			continue
		}
		declared[id] = struct{}{}
		if _, ok := actual[id]; !ok {
			report.MissingChatIDs = append(report.MissingChatIDs, id)
		}
	}

	for id := range actual {
		if _, ok := declared[id]; !ok {
			report.ExtraChatIDs = append(report.ExtraChatIDs, id)
		}
	}

	sort.Strings(report.MissingChatIDs)
	sort.Strings(report.ExtraChatIDs)
	return report
}
